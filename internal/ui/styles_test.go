package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessContainsPrefixAndMessage(t *testing.T) {
	result := Success("done")
	assert.Contains(t, result, "✓")
	assert.Contains(t, result, "done")
}

func TestWarnContainsPrefixAndMessage(t *testing.T) {
	result := Warn("careful")
	assert.Contains(t, result, "⚠")
	assert.Contains(t, result, "careful")
}

func TestErrContainsPrefixAndMessage(t *testing.T) {
	result := Err("failed")
	assert.Contains(t, result, "✗")
	assert.Contains(t, result, "failed")
}

func TestInfoDifferentFromHint(t *testing.T) {
	assert.NotEqual(t, Info("message"), Hint("message"))
}

func TestAllFormattersKeepMessage(t *testing.T) {
	formatters := map[string]func(string) string{
		"Success":   Success,
		"Warn":      Warn,
		"Err":       Err,
		"Info":      Info,
		"Hint":      Hint,
		"Addr":      Addr,
		"Val":       Val,
		"Meta":      Meta,
		"ChainName": ChainName,
	}
	for name, fn := range formatters {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, fn("test"), "test")
		})
	}
}

func TestTruncateAddr(t *testing.T) {
	assert.Equal(t, "", TruncateAddr(""))
	assert.Equal(t, "0x1234", TruncateAddr("0x1234"))
	assert.Equal(t, "0x12345678", TruncateAddr("0x12345678"))
	assert.Equal(t, "0x5aAe…eAed", TruncateAddr("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
}

func TestBanner(t *testing.T) {
	result := Banner("2.3.4")
	assert.Contains(t, result, "history scans")
	assert.Contains(t, result, "v2.3.4")
}
