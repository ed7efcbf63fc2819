package driver

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"chatwarden/pkg/warden"
)

func telegramDescriptor(builder BuilderFunc) Descriptor {
	return Descriptor{
		Type:     "telegram",
		Platform: warden.PlatformTelegram,
		Builder:  builder,
	}
}

func stubBuilder(failFor string) BuilderFunc {
	return func(_ context.Context, definition Definition, _ *slog.Logger) (Runtime, error) {
		if definition.Name == failFor {
			return Runtime{}, errors.New("broken build")
		}

		return Runtime{
			Driver: stubDriver{name: definition.Name},
			Port:   stubChatPort{},
		}, nil
	}
}

func TestNewRegistryValidatesDescriptors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		descriptors []Descriptor
		wantErr     bool
	}{
		{
			name:        "valid descriptor",
			descriptors: []Descriptor{telegramDescriptor(stubBuilder(""))},
		},
		{
			name: "empty type",
			descriptors: []Descriptor{
				{Platform: warden.PlatformTelegram, Builder: stubBuilder("")},
			},
			wantErr: true,
		},
		{
			name: "empty platform",
			descriptors: []Descriptor{
				{Type: "telegram", Builder: stubBuilder("")},
			},
			wantErr: true,
		},
		{
			name: "nil builder",
			descriptors: []Descriptor{
				{Type: "telegram", Platform: warden.PlatformTelegram},
			},
			wantErr: true,
		},
		{
			name: "duplicate type",
			descriptors: []Descriptor{
				telegramDescriptor(stubBuilder("")),
				telegramDescriptor(stubBuilder("")),
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRegistry(testCase.descriptors)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegistryPlatformForType(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{telegramDescriptor(stubBuilder(""))})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	platform, err := registry.PlatformForType("telegram")
	if err != nil {
		t.Fatalf("platform for type failed: %v", err)
	}
	if platform != warden.PlatformTelegram {
		t.Fatalf("platform = %s, want %s", platform, warden.PlatformTelegram)
	}

	if _, err := registry.PlatformForType("irc"); err == nil {
		t.Fatal("expected unsupported type error")
	}

	types := registry.Types()
	if len(types) != 1 || types[0] != "telegram" {
		t.Fatalf("types = %v, want [telegram]", types)
	}
}

func TestRegistryBuildEnabled(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{telegramDescriptor(stubBuilder("broken"))})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	runtimes, err := registry.BuildEnabled(context.Background(), []Definition{
		{Name: "tg-main", Type: "telegram", Enabled: true, Config: []byte("{}")},
		{Name: "tg-off", Type: "telegram", Enabled: false, Config: []byte("{}")},
	}, slog.Default())
	if err != nil {
		t.Fatalf("build enabled failed: %v", err)
	}
	if len(runtimes) != 1 {
		t.Fatalf("runtimes = %d, want 1 (disabled skipped)", len(runtimes))
	}
	if runtimes[0].Driver.Name() != "tg-main" {
		t.Fatalf("driver name = %s, want tg-main", runtimes[0].Driver.Name())
	}
	if runtimes[0].Port == nil {
		t.Fatal("expected port on built runtime")
	}

	if _, err := registry.BuildEnabled(context.Background(), []Definition{
		{Name: "broken", Type: "telegram", Enabled: true, Config: []byte("{}")},
	}, slog.Default()); err == nil {
		t.Fatal("expected build error")
	}

	if _, err := registry.BuildEnabled(context.Background(), []Definition{
		{Name: "tg-main", Type: "telegram", Enabled: true},
		{Name: "tg-main", Type: "telegram", Enabled: true},
	}, slog.Default()); err == nil {
		t.Fatal("expected duplicate name error")
	}

	if _, err := registry.BuildEnabled(context.Background(), []Definition{
		{Name: "tg-main", Type: "matrix", Enabled: true},
	}, slog.Default()); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestFirstPort(t *testing.T) {
	t.Parallel()

	port := stubChatPort{}
	got, err := FirstPort([]Runtime{
		{Driver: stubDriver{name: "one"}},
		{Driver: stubDriver{name: "two"}, Port: port},
	})
	if err != nil {
		t.Fatalf("first port failed: %v", err)
	}
	if got != warden.ChatPort(port) {
		t.Fatal("first port returned wrong port")
	}

	if _, err := FirstPort([]Runtime{{Driver: stubDriver{name: "one"}}}); err == nil {
		t.Fatal("expected no-port error")
	}
}

type stubDriver struct {
	name string
}

func (d stubDriver) Name() string {
	return d.name
}

func (d stubDriver) Start(_ context.Context, _ warden.EventSink) error {
	return nil
}

func (d stubDriver) Shutdown(_ context.Context) error {
	return nil
}

type stubChatPort struct{}

func (stubChatPort) SendMessage(_ context.Context, _ warden.SendMessageRequest) (*warden.SentMessage, error) {
	return &warden.SentMessage{ID: "1"}, nil
}

func (stubChatPort) DeleteMessage(_ context.Context, _ warden.Conversation, _ string) error {
	return nil
}

func (stubChatPort) DownloadMedia(_ context.Context, _ string, _ string) error {
	return nil
}

func (stubChatPort) SetChatTitle(_ context.Context, _ warden.Conversation, _ string) error {
	return nil
}

func (stubChatPort) SetChatPhoto(_ context.Context, _ warden.Conversation, _ string) error {
	return nil
}

func (stubChatPort) RecentMessages(_ context.Context, _ warden.Conversation, _ int) ([]warden.HistoryEntry, error) {
	return nil, nil
}

func (stubChatPort) Self(_ context.Context) (warden.Actor, error) {
	return warden.Actor{ID: "7"}, nil
}
