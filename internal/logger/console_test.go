package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Tracef("trace message")
	log.Debugf("debug message")
	log.Infof("info message")
	log.Warnf("warn message")
	log.Errorf("error message")

	out := buf.String()
	assert.NotContains(t, out, "trace message")
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "loud")

	log.Debugf("hidden")
	log.Infof("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestTimestampPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Infof("hello %s", "world")

	line := buf.String()
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] hello world\n$`, line)
}

func TestNilWriterDiscards(t *testing.T) {
	log := New(nil, "trace")
	assert.NotPanics(t, func() {
		log.Infof("into the void")
	})

	assert.NotPanics(t, func() {
		Discard().Errorf("also dropped")
	})
}

func TestConcurrentWritesAreWholeLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.Infof("line %d", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] line \d+$`, line)
	}
}
