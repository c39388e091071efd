package catalog

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
	"friday/pkg/automation"
	"friday/pkg/config"
	"friday/pkg/executor"
	"friday/pkg/fallback"
	"friday/pkg/llm"
	"friday/pkg/perception"
	"friday/pkg/registry"
)

// fakeController records calls. Methods it does not override panic through
// the nil embedded interface, so tests notice unexpected OS access.
type fakeController struct {
	automation.Controller

	mu       sync.Mutex
	calls    []string
	whatsApp map[automation.WhatsAppVia]error
	wifiOn   bool
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) SetVolume(_ context.Context, level int) error {
	f.record("volume")
	return nil
}

func (f *fakeController) SetBrightness(context.Context, int) error {
	f.record("brightness")
	return nil
}

func (f *fakeController) OpenURL(_ context.Context, u string) error {
	f.record("open " + u)
	return nil
}

func (f *fakeController) ToggleWiFi(context.Context) (bool, error) {
	f.wifiOn = !f.wifiOn
	return f.wifiOn, nil
}

func (f *fakeController) Shell(_ context.Context, command string) (string, error) {
	f.record("shell " + command)
	return "", nil
}

func (f *fakeController) Permissions(context.Context) []automation.Permission {
	return []automation.Permission{
		{Name: "Accessibility", Remediation: api.RemediationAccessibility, Detail: "not allowed assistive access"},
		{Name: "tesseract", Granted: true},
	}
}

func (f *fakeController) SendWhatsApp(_ context.Context, via automation.WhatsAppVia, contact, message string) error {
	f.record("whatsapp " + string(via) + " " + contact)
	return f.whatsApp[via]
}

type recordingTelegram struct {
	chatID int64
	text   string
	err    error
}

func (r *recordingTelegram) Send(_ context.Context, chatID int64, text string) error {
	r.chatID, r.text = chatID, text
	return r.err
}

type fakeCompleter struct {
	answer string
	err    error
}

func (f fakeCompleter) Provider() string { return "fake" }
func (f fakeCompleter) Model() string    { return "fake-1" }
func (f fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.answer, f.err
}
func (f fakeCompleter) IsTransientError(error) bool { return false }

// harness resolves families like the dispatcher does.
type harness struct {
	reg  *registry.Registry
	exec *executor.Executor
}

func newHarness(t *testing.T, d Deps) *harness {
	t.Helper()
	if d.Controller == nil {
		d.Controller = &fakeController{}
	}
	if d.Files == nil {
		d.Files = &Files{Home: t.TempDir()}
	}
	if d.Telegram == nil {
		d.Telegram = &recordingTelegram{}
	}
	reg := registry.New()
	require.NoError(t, Build(reg, d))
	reg.Seal()

	policy := executor.Policy{
		Timeouts: map[api.EffectClass]time.Duration{
			api.EffectRead:          5 * time.Second,
			api.EffectLocalMutation: 5 * time.Second,
			api.EffectOSAutomation:  5 * time.Second,
			api.EffectNetwork:       5 * time.Second,
		},
		RetryDelay: time.Millisecond,
	}
	return &harness{reg: reg, exec: executor.New(reg, policy)}
}

func (h *harness) invoke(name string, args api.Args) api.Outcome {
	if chain, ok := h.reg.Chain(name); ok {
		return fallback.NewResolver(h.exec).Resolve(context.Background(), chain, args)
	}
	return h.exec.Execute(context.Background(), name, args, 0)
}

func TestBuild_CatalogNames(t *testing.T) {
	h := newHarness(t, Deps{
		AI: []llm.Provider{
			{Name: "primary", Completer: fakeCompleter{answer: "42"}},
			{Name: "backup", Completer: fakeCompleter{answer: "43"}},
		},
	})

	var names []string
	for _, d := range h.reg.List() {
		names = append(names, d.Name)
	}
	want := []string{
		"set_volume", "set_brightness", "mute_volume", "open_app", "close_app", "toggle_wifi",
		"open_url", "run_command", "check_permissions", "system_info",
		"create_file", "create_folder", "copy_path", "move_path", "delete_path",
		"read_file", "list_folder", "search_files",
		"read_screen_text", "find_text_on_screen", "list_ui_elements",
		"web_search", "get_weather", "get_news",
		"ask_ai_primary", "ask_ai_backup",
		"send_whatsapp_desktop", "send_whatsapp_web", "send_telegram",
		"ask_ai", "send_message",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, h.reg.List(), h.reg.List())

	chain, ok := h.reg.Chain(FamilyAskAI)
	require.True(t, ok)
	assert.Equal(t, []string{"ask_ai_primary", "ask_ai_backup"}, chain.Providers)
}

func TestBuild_NoAIProviders(t *testing.T) {
	h := newHarness(t, Deps{})
	_, ok := h.reg.Chain(FamilyAskAI)
	assert.False(t, ok)
	_, ok = h.reg.Chain(FamilySendMessage)
	assert.True(t, ok)
}

func TestAskAI_FailsOverToNextProvider(t *testing.T) {
	h := newHarness(t, Deps{
		AI: []llm.Provider{
			{Name: "primary", Completer: fakeCompleter{err: errors.New("401 invalid api key")}},
			{Name: "backup", Completer: fakeCompleter{answer: " Paris \n"}},
		},
	})

	out := h.invoke(FamilyAskAI, api.Args{"question": "Capital of France?"})
	require.True(t, out.OK, out.Render())
	assert.Equal(t, "Paris", out.Text)
	assert.Equal(t, "ask_ai_backup", out.Capability)
}

func TestSendMessage_FallsThroughToTelegram(t *testing.T) {
	unavailable := api.Errorf(api.KindExternalUnavailable, "WhatsApp automation is not supported").AsPermanent()
	ctl := &fakeController{whatsApp: map[automation.WhatsAppVia]error{
		automation.WhatsAppDesktop: unavailable,
		automation.WhatsAppWeb:     unavailable,
	}}
	tg := &recordingTelegram{}
	h := newHarness(t, Deps{
		Controller: ctl,
		Telegram:   tg,
		Messaging: config.MessagingConfig{Contacts: map[string]config.Contact{
			"Mom": {Phone: "+911234567890", TelegramChatID: 4242},
		}},
	})

	out := h.invoke(FamilySendMessage, api.Args{"contact": "mom", "message": "on my way"})
	require.True(t, out.OK, out.Render())
	assert.Equal(t, "send_telegram", out.Capability)
	assert.Equal(t, int64(4242), tg.chatID)
	assert.Equal(t, "on my way", tg.text)
	assert.Equal(t, []string{
		"whatsapp desktop +911234567890",
		"whatsapp web +911234567890",
	}, ctl.calls)
}

func TestSendMessage_PermissionDeniedStopsChain(t *testing.T) {
	denied := api.Errorf(api.KindPermissionDenied, "not allowed assistive access").WithRemediation(api.RemediationAccessibility)
	ctl := &fakeController{whatsApp: map[automation.WhatsAppVia]error{automation.WhatsAppDesktop: denied}}
	tg := &recordingTelegram{}
	h := newHarness(t, Deps{Controller: ctl, Telegram: tg})

	out := h.invoke(FamilySendMessage, api.Args{"contact": "+15550100", "message": "hi"})
	require.False(t, out.OK)
	assert.Equal(t, api.KindPermissionDenied, out.Kind())
	assert.Contains(t, out.Render(), "Privacy & Security > Accessibility")
	assert.Zero(t, tg.chatID)
}

func TestSendTelegram_UnknownContact(t *testing.T) {
	h := newHarness(t, Deps{})
	out := h.invoke("send_telegram", api.Args{"contact": "Nobody", "message": "hi"})
	require.False(t, out.OK)
	assert.Equal(t, api.KindExternalUnavailable, out.Kind())
	assert.False(t, out.Failure.Retryable)
	assert.Contains(t, out.Failure.Remediation, "messaging.contacts")
}

func TestSystemCapabilities(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, Deps{Controller: ctl})

	out := h.invoke("set_volume", api.Args{"level": 150})
	require.True(t, out.OK)
	assert.Equal(t, "Volume set to 100%", out.Text)
	assert.Equal(t, []string{"Volume set to 100%"}, out.SideEffects)

	out = h.invoke("open_url", api.Args{"url": "example.com/docs"})
	require.True(t, out.OK)
	assert.Contains(t, ctl.calls, "open https://example.com/docs")

	out = h.invoke("open_url", api.Args{"url": "file:///etc/passwd"})
	assert.Equal(t, api.KindInvalidArgument, out.Kind())

	out = h.invoke("toggle_wifi", nil)
	require.True(t, out.OK)
	assert.Equal(t, "Wi-Fi turned on", out.Text)

	out = h.invoke("run_command", api.Args{"command": "true"})
	require.True(t, out.OK)
	assert.Equal(t, "Command completed with no output.", out.Text)

	out = h.invoke("check_permissions", nil)
	require.True(t, out.OK)
	assert.Equal(t, "Accessibility: missing (not allowed assistive access)\n  How to fix: "+
		api.RemediationAccessibility+"\ntesseract: granted", out.Text)
}

func TestNormalizeURL(t *testing.T) {
	for _, tc := range []struct {
		in, want string
		ok       bool
	}{
		{"example.com", "https://example.com", true},
		{" http://example.com/a?b=c ", "http://example.com/a?b=c", true},
		{"ftp://example.com", "", false},
		{"https://", "", false},
	} {
		got, err := normalizeURL(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

type fakeScreen struct {
	snap *perception.Snapshot
	err  error
	got  []perception.Region
}

func (f *fakeScreen) CaptureRegions(_ context.Context, regions ...perception.Region) (*perception.Snapshot, error) {
	f.got = regions
	return f.snap, f.err
}

func TestScreenCapabilities_NotConfigured(t *testing.T) {
	h := newHarness(t, Deps{})
	out := h.invoke("read_screen_text", nil)
	require.False(t, out.OK)
	assert.Equal(t, api.KindExternalUnavailable, out.Kind())
}

func TestScreenCapabilities_ErrorsPassThrough(t *testing.T) {
	screen := &fakeScreen{err: api.Errorf(api.KindPermissionDenied, "screen recording is not allowed")}
	h := newHarness(t, Deps{Screen: screen})

	out := h.invoke("find_text_on_screen", api.Args{"text": "Save"})
	require.False(t, out.OK)
	assert.Equal(t, api.KindPermissionDenied, out.Kind())
	assert.Equal(t, []perception.Region{perception.RegionFull}, screen.got)

	out = h.invoke("read_screen_text", api.Args{"region": "sideways"})
	assert.Equal(t, api.KindInvalidArgument, out.Kind())
}

type blankGrabber struct{}

func (blankGrabber) Grab(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 20, 20)), nil
}

type blankOCR struct{}

func (blankOCR) Recognize(context.Context, image.Image) (string, error) { return "", nil }

type errAX struct{ err error }

func (a errAX) UIElements(context.Context) ([]perception.UIElement, error) { return nil, a.err }

func TestListUIElements_KeepsAccessibilityFailure(t *testing.T) {
	unsupported := api.Errorf(api.KindExternalUnavailable, "UI element listing is not supported on linux").AsPermanent()
	engine := perception.NewEngine(blankGrabber{}, blankOCR{}, perception.WithAccessibility(errAX{err: unsupported}))
	h := newHarness(t, Deps{Screen: engine})

	out := h.invoke("list_ui_elements", nil)
	require.False(t, out.OK)
	assert.Equal(t, api.KindExternalUnavailable, out.Kind())
	assert.NotContains(t, out.Render(), api.RemediationAccessibility)

	denied := api.Errorf(api.KindPermissionDenied, "accessibility permission denied").
		WithRemediation(api.RemediationAccessibility)
	engine = perception.NewEngine(blankGrabber{}, blankOCR{}, perception.WithAccessibility(errAX{err: denied}))
	h = newHarness(t, Deps{Screen: engine})
	out = h.invoke("list_ui_elements", nil)
	assert.Equal(t, api.KindPermissionDenied, out.Kind())

	engine = perception.NewEngine(blankGrabber{}, blankOCR{}, perception.WithAccessibility(errAX{err: context.DeadlineExceeded}))
	h = newHarness(t, Deps{Screen: engine})
	out = h.invoke("list_ui_elements", nil)
	assert.Equal(t, api.KindTimeout, out.Kind())
}

func TestRenderMatches(t *testing.T) {
	assert.Equal(t, `"Save" is not visible in the full region.`, renderMatches("Save", perception.RegionFull, nil))
	got := renderMatches("hello", perception.RegionTop, []perception.Match{
		{Line: "Hello World", Hint: "upper part of top region, line 1 of 2"},
		{Line: "hello there", Hint: "lower part of top region, line 2 of 2"},
	})
	assert.Equal(t, "Found \"hello\" on 2 line(s) in the top region:\n"+
		"- Hello World (upper part of top region, line 1 of 2)\n"+
		"- hello there (lower part of top region, line 2 of 2)", got)
}

func TestRenderElements(t *testing.T) {
	assert.Equal(t, "The frontmost window has no UI elements.", renderElements([]perception.UIElement{}))
	got := renderElements([]perception.UIElement{
		{Role: "AXButton", Name: "OK"},
		{Role: "AXTextField"},
	})
	assert.Equal(t, "2 UI elements:\n- AXButton \"OK\"\n- AXTextField", got)
}
