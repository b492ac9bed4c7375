package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("step %d", 3)
	assert.Equal(t, "step 3", got)

	got = ""
	SetLogger(nil)
	Logf("muted %d", 4)
	assert.Empty(t, got, "no-op logger must not forward messages")
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("default logger: %s", "ok") })
}
