package warden

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
}

// InterestSet describes event selection criteria for module subscriptions.
type InterestSet struct {
	// Kinds restricts matching to the listed event kinds when non-empty.
	Kinds []EventKind
	// CommandNames restricts command events to the listed canonical names
	// when non-empty.
	CommandNames []string
	// NoticeKinds restricts notice events to the listed kinds when non-empty.
	NoticeKinds []NoticeKind
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !containsKind(i.Kinds, event.Kind) {
		return false
	}
	if len(i.CommandNames) > 0 {
		if event.Command == nil || !containsString(i.CommandNames, event.Command.Name) {
			return false
		}
	}
	if len(i.NoticeKinds) > 0 {
		if event.Notice == nil || !containsNoticeKind(i.NoticeKinds, event.Notice.Kind) {
			return false
		}
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allIncluded(filter.Kinds, i.Kinds, containsKind) {
		return false
	}
	if len(i.CommandNames) > 0 && !allIncluded(filter.CommandNames, i.CommandNames, containsString) {
		return false
	}
	if len(i.NoticeKinds) > 0 && !allIncluded(filter.NoticeKinds, i.NoticeKinds, containsNoticeKind) {
		return false
	}

	return true
}

func containsKind(kinds []EventKind, target EventKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}

func containsNoticeKind(kinds []NoticeKind, target NoticeKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}

func containsString(values []string, target string) bool {
	for _, candidate := range values {
		if candidate == target {
			return true
		}
	}

	return false
}

func allIncluded[T comparable](subset, allowed []T, contains func([]T, T) bool) bool {
	for _, item := range subset {
		if !contains(allowed, item) {
			return false
		}
	}

	return true
}
