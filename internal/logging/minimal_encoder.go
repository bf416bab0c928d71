package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// newMinimalEncoder builds a single-line, lightly-colorized console
// encoder: timestamp dim, level colored by severity, message plain,
// structured fields trailing as key=value. This is deliberately one
// fixed palette rather than the teacher's swappable-theme system —
// the console has no user-facing theme setting, so the multi-theme
// indirection would be dead configuration surface.
func newMinimalEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "t",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     encodeDimTime,
		EncodeLevel:    encodeColorLevel,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}

const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorGreen  = "\x1b[38;5;108m"
	colorYellow = "\x1b[38;5;179m"
	colorRed    = "\x1b[38;5;167m"
	colorBlue   = "\x1b[38;5;109m"
)

func encodeDimTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(colorDim + t.Format("15:04:05.000") + colorReset)
}

func encodeColorLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color, label string
	switch l {
	case zapcore.DebugLevel:
		color, label = colorBlue, "DBG"
	case zapcore.InfoLevel:
		color, label = colorGreen, "INF"
	case zapcore.WarnLevel:
		color, label = colorYellow, "WRN"
	default:
		color, label = colorRed, "ERR"
	}
	enc.AppendString(fmt.Sprintf("%s%s%s", color, label, colorReset))
}
