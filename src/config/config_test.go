package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()

	conf.SetDataDir("/tmp/mahala-test")
	if conf.DatabaseDir != filepath.Join("/tmp/mahala-test", DefaultBadgerFile) {
		t.Fatalf("default DatabaseDir should follow DataDir, got %s", conf.DatabaseDir)
	}
	if conf.Keyfile() != filepath.Join("/tmp/mahala-test", DefaultKeyfile) {
		t.Fatalf("unexpected Keyfile %s", conf.Keyfile())
	}

	conf.DatabaseDir = "/var/db"
	conf.SetDataDir("/tmp/other")
	if conf.DatabaseDir != "/var/db" {
		t.Fatalf("explicit DatabaseDir should be kept, got %s", conf.DatabaseDir)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"unknown": logrus.DebugLevel,
	}

	for s, l := range cases {
		if LogLevel(s) != l {
			t.Fatalf("LogLevel(%s) should be %v", s, l)
		}
	}
}

func TestLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "mahala.log")

	conf := NewDefaultConfig()
	conf.LogLevel = "info"
	conf.LogFile = logFile

	conf.Logger().Info("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file does not contain the entry: %s", data)
	}
}
