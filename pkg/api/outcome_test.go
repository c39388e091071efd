package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      FailureKind
		retryable bool
	}{
		{"typed error", Errorf(KindNotFound, "no such app"), KindNotFound, false},
		{"wrapped typed error", fmt.Errorf("outer: %w", Errorf(KindExternalUnavailable, "down")), KindExternalUnavailable, true},
		{"permanent external", Errorf(KindExternalUnavailable, "bad key").AsPermanent(), KindExternalUnavailable, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout, true},
		{"missing binary", &exec.Error{Name: "tesseract", Err: exec.ErrNotFound}, KindExternalUnavailable, false},
		{"missing file", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindNotFound, false},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, KindPermissionDenied, false},
		{"plain error", errors.New("boom"), KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.retryable, f.Retryable)
		})
	}
}

func TestClassify_PermissionDeniedAlwaysHasRemediation(t *testing.T) {
	f := Classify(Errorf(KindPermissionDenied, "osascript is not allowed assistive access"))
	assert.Equal(t, RemediationAccessibility, f.Remediation)

	f = Classify(Errorf(KindPermissionDenied, "not authorized").WithRemediation(RemediationAutomation))
	assert.Equal(t, RemediationAutomation, f.Remediation)
}

func TestOutcomeRender(t *testing.T) {
	assert.Equal(t, "Volume set to 40%", Succeed("set_volume", Textf("Volume set to %d%%", 40)).Render())
	assert.Equal(t, "Done.", Succeed("mute_volume", Result{}).Render())

	out := FailWith("open_app", Failure{Kind: KindPermissionDenied, Message: "denied", Remediation: "fix it"})
	assert.Equal(t, "Error (PermissionDenied): denied\nHow to fix: fix it", out.Render())
	assert.Equal(t, KindPermissionDenied, out.Kind())
}

func TestSameSchema(t *testing.T) {
	a := []Param{{Name: "question", Type: ParamString, Required: true}}
	b := []Param{{Name: "question", Type: ParamString, Required: true}}
	c := []Param{{Name: "question", Type: ParamString}}

	assert.True(t, SameSchema(a, b))
	assert.False(t, SameSchema(a, c))
	assert.False(t, SameSchema(a, nil))
}

func TestDescriptorSignature(t *testing.T) {
	d := Descriptor{Name: "set_volume", Params: []Param{
		{Name: "level", Type: ParamPercent, Required: true},
		{Name: "device", Type: ParamString},
	}}
	assert.Equal(t, "set_volume(level: percent, device?: string)", d.Signature())
}
