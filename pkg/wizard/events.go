package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Event names accepted by HandleEvent.
const (
	EventUpdateField = "update_field"
	EventValidate    = "validate"
	EventNext        = "next_step"
	EventPrevious    = "prev_step"
	EventGoto        = "goto_step"
	EventSubmit      = "submit"
	EventReset       = "reset"
)

// ErrUnknownEvent is returned for events the controller does not handle.
var ErrUnknownEvent = errors.New("wizard: unknown event")

// HandleEvent applies a UI event. Payload shapes:
//
//	update_field  {"field": name, "value": v}
//	goto_step     {"step": i}
//	validate      {"step": i} (defaults to the current section)
//
// Validation failures and denied jumps are not errors; only unknown events,
// malformed payloads and sink failures are returned.
func (c *Controller) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case EventUpdateField:
		name, _ := payload["field"].(string)
		if name == "" {
			return fmt.Errorf("%s: missing field name", event)
		}
		c.UpdateField(name, payload["value"])

	case EventValidate:
		step, ok := intArg(payload["step"])
		if !ok {
			step = c.Current()
		}
		c.ValidateSection(step)

	case EventNext:
		c.Next()

	case EventPrevious:
		c.Previous()

	case EventGoto:
		step, ok := intArg(payload["step"])
		if !ok {
			return fmt.Errorf("%s: invalid step %v", event, payload["step"])
		}
		c.JumpTo(step)

	case EventSubmit:
		_, err := c.Submit(ctx)
		return err

	case EventReset:
		c.Reset()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
