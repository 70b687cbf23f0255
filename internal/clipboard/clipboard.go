// Package clipboard implements ports.Clipboard using
// github.com/atotto/clipboard, grounded on the clipboard library shared
// by the pack's other dictation-adjacent manifests (bikemazzell-skald-go,
// Jeff-Barlow-Spady-ramble), which shell out to xclip/xsel/wl-copy the
// same way the teacher shells out to ffmpeg for capture.
package clipboard

import (
	"context"

	"github.com/atotto/clipboard"
)

// System writes transcripts to the desktop clipboard.
type System struct{}

// New builds a System clipboard writer.
func New() *System {
	return &System{}
}

// SetText writes text to the clipboard. clipboard.WriteAll itself does
// not accept a context; ctx is honored by bailing out early if already
// cancelled, matching the cheap-check idiom used elsewhere in this repo.
func (System) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return clipboard.WriteAll(text)
}
