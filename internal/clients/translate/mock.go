package translate

import (
	"context"
	"fmt"
)

// Mock is the offline translator used when no service endpoint is configured
// and in tests. It is deterministic: the pseudo-translation is the source
// text tagged with the target language, so positional pairing and counts
// behave exactly as with a real service.
type Mock struct {
	// Fail, when set, makes every call return this error. Lets tests drive
	// the retry path.
	Fail error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Translate(_ context.Context, text, _, to string) (string, error) {
	if m.Fail != nil {
		return "", m.Fail
	}
	return fmt.Sprintf("[%s] %s", to, text), nil
}
