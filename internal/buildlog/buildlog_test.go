package buildlog

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} \| BigDouble_PyBuilder \| INFO \$ hello$`)

func TestFormatter_Pattern(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "", logrus.DebugLevel)
	log.Info("hello")

	line := strings.TrimSuffix(buf.String(), "\n")
	assert.Regexp(t, recordPattern, line)
}

func TestFormatter_CustomName(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "custom", logrus.DebugLevel)
	log.Debug("x")

	assert.Contains(t, buf.String(), " | custom | DEBUG $ x\n")
}

func TestFormatter_LevelNames(t *testing.T) {
	tests := []struct {
		level logrus.Level
		want  string
	}{
		{logrus.DebugLevel, "DEBUG"},
		{logrus.InfoLevel, "INFO"},
		{logrus.WarnLevel, "WARNING"},
		{logrus.ErrorLevel, "ERROR"},
		{logrus.FatalLevel, "CRITICAL"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, levelName(tc.level))
		})
	}
}

func TestFormatter_MultiLineMessage(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "", logrus.DebugLevel)
	log.Info("first\nOUTPUT [0]\nlast")

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "$ first\nOUTPUT [0]\nlast\n"), "got %q", out)
	assert.Equal(t, 1, strings.Count(out, " | BigDouble_PyBuilder | "))
}

func TestFormatter_IgnoresFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "", logrus.DebugLevel)
	log.WithField("run_id", "abc").Info("msg")

	assert.NotContains(t, buf.String(), "abc")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "", logrus.ErrorLevel)
	log.Debug("debug message")
	log.Info("info message")

	assert.Empty(t, buf.String())
}

func TestNew_IndependentLoggers(t *testing.T) {
	var a, b bytes.Buffer
	la := New(&a, "", logrus.DebugLevel)
	lb := New(&b, "", logrus.DebugLevel)
	la.Info("one")
	lb.Info("two")

	assert.Equal(t, 1, strings.Count(a.String(), "\n"))
	assert.Equal(t, 1, strings.Count(b.String(), "\n"))
	assert.NotContains(t, a.String(), "two")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.DebugLevel},
		{"trace", logrus.TraceLevel},
		{"verbose", logrus.DebugLevel},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.input))
		})
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	require.NotNil(t, log)
	log.Info("dropped")
}
