package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevel_Filters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel("info")
	})

	SetLevel("warn")
	Infof("[test] hidden")
	Warnf("[test] shown %d", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 1")

	buf.Reset()
	SetLevel("DEBUG")
	Debugf("[test] debug line")
	With(map[string]any{"pair": "p1"}).Infof("[test] fields")
	assert.Contains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "pair=p1")
}
