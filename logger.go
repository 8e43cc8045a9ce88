package main

import (
	"io"
	"os"

	"github.com/fansqz/gdber/config"
	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 根据配置初始化日志，level非法时回退到info
func SetupLogger(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.File == "" {
		return nil
	}

	// 打开文件
	logFile, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return nil
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
	}
}
