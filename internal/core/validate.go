package core

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

const (
	maxLogBytes      = 512 << 20 // 512 MiB
	maxConfigBytes   = 1 << 20   // 1 MiB
	maxCallbackChars = 2000

	defaultLogName = "event_log"
)

// validateSubmit checks the shape of a submission: mandatory event log,
// structurally valid configuration, plausible callback URL. No semantic
// validation of discovery parameters happens here; that's the engine's job.
func validateSubmit(req *structs.SubmitRequest, strict bool) error {
	if req == nil || len(req.Log) == 0 {
		return fmt.Errorf("%w an event log is required", errors.ErrValidation)
	}
	if len(req.Log) > maxLogBytes {
		return fmt.Errorf("%w event log exceeds %d bytes", errors.ErrValidation, maxLogBytes)
	}
	if len(req.Config) > maxConfigBytes {
		return fmt.Errorf("%w configuration exceeds %d bytes", errors.ErrValidation, maxConfigBytes)
	}
	if len(req.Config) > 0 {
		err := structs.ValidateConfig(req.Config, strict)
		if err != nil {
			return err
		}
	}
	if req.CallbackURL != "" {
		if len(req.CallbackURL) > maxCallbackChars {
			return fmt.Errorf("%w callback url too long", errors.ErrValidation)
		}
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w callback url must be absolute http(s)", errors.ErrValidation)
		}
	}
	return nil
}

func validateOutcome(out *structs.Outcome) error {
	if out == nil {
		return fmt.Errorf("%w no outcome given", errors.ErrInvalidArg)
	}
	switch out.Status {
	case structs.SUCCEEDED:
		if out.OutputPath == "" {
			return fmt.Errorf("%w succeeded outcome needs an output path", errors.ErrInvalidArg)
		}
		if out.ErrorDetail != "" {
			return fmt.Errorf("%w succeeded outcome cannot carry an error", errors.ErrInvalidArg)
		}
	case structs.FAILED:
		if out.ErrorDetail == "" {
			return fmt.Errorf("%w failed outcome needs error detail", errors.ErrInvalidArg)
		}
		if out.OutputPath != "" {
			return fmt.Errorf("%w failed outcome cannot carry an output path", errors.ErrInvalidArg)
		}
	default:
		return fmt.Errorf("%w %s is not a reportable outcome (succeeded, failed)", errors.ErrInvalidState, out.Status)
	}
	return nil
}

// sanitizeFilename reduces an uploaded filename to a safe basename.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return defaultLogName
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return defaultLogName
	}
	return out
}
