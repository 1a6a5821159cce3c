package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelFor maps the -v count to a log level.
func levelFor(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// newLogger builds a console logger writing to w and, when logfile is
// set, appending to that file as well. The returned cleanup closes the file.
func newLogger(w io.Writer, verbosity int, logfile string) (*zap.Logger, func(), error) {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	sink := zapcore.AddSync(w)
	cleanup := func() {}
	if logfile != "" {
		file, closeFile, err := zap.Open(logfile)
		if err != nil {
			return nil, nil, err
		}
		sink = zapcore.NewMultiWriteSyncer(sink, file)
		cleanup = closeFile
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), sink, levelFor(verbosity))
	return zap.New(core).Named("kcheck"), cleanup, nil
}
