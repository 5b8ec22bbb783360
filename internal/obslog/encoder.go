package obslog

import (
	"fmt"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Calm, single-theme ANSI palette. The teacher's console encoder supports
// several named themes; this daemon only ever runs on an operator's
// terminal or inside a container log stream, so one palette is enough.
const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;108m"
	colorName   = "\x1b[38;5;109m"
	colorField  = "\x1b[38;5;175m"
	colorWarn   = "\x1b[38;5;214m"
	colorErr    = "\x1b[38;5;167m"
)

// consoleEncoder renders one line per entry:
//
//	15:04:05.000  scheduler  client registered  client_id=a1b2c3d4e5f6a7b8
type consoleEncoder struct {
	zapcore.Encoder
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{Encoder: zapcore.NewJSONEncoder(zapcoreProductionConfig())}
}

func zapcoreProductionConfig() zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{MessageKey: "msg"}
	return cfg
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: e.Encoder.Clone()}
}

func (e *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	out := buffer.NewPool().Get()

	out.AppendString(colorTime)
	out.AppendString(ent.Time.Format("15:04:05.000"))
	out.AppendString(colorReset)

	if lvl := levelTag(ent.Level); lvl != "" {
		out.AppendString("  ")
		out.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		out.AppendString("  ")
		out.AppendString(colorName)
		out.AppendString(ent.LoggerName)
		out.AppendString(colorReset)
	}

	out.AppendString("  ")
	out.AppendString(ent.Message)

	if len(fields) > 0 {
		out.AppendString("  ")
		out.AppendString(formatFields(fields))
	}
	out.AppendString("\n")
	return out, nil
}

func levelTag(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorWarn + "WARN" + colorReset
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorErr + level.CapitalString() + colorReset
	default:
		return ""
	}
}

func formatFields(fields []zapcore.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, colorField+f.Key+"="+fieldValue(f)+colorReset)
	}
	return strings.Join(parts, " ")
}

func fieldValue(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", f.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", f.Integer != 0)
	default:
		if f.Interface != nil {
			return fmt.Sprintf("%v", f.Interface)
		}
		return f.String
	}
}
