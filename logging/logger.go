package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared logrus instance for the whole process.
var Logger = logrus.New()

var once sync.Once

// CustomFormatter renders one flat line per entry: date/time, system name,
// level, a generated event id and the message.
type CustomFormatter struct {
	SystemName string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	ts := entry.Time.UTC()
	b.WriteString(fmt.Sprintf("Date: %s, Time: %s, ", ts.Format("2006-01-02"), ts.Format("15:04:05")))
	b.WriteString(fmt.Sprintf("Event Source: %s, ", f.SystemName))
	b.WriteString(fmt.Sprintf("Event Type: %s, ", strings.ToUpper(entry.Level.String())))
	b.WriteString(fmt.Sprintf("Event ID: %s, ", uuid.New().String()))
	b.WriteString(fmt.Sprintf("Message: %s", entry.Message))

	if len(entry.Data) > 0 {
		for k, v := range entry.Data {
			b.WriteString(fmt.Sprintf(", %s: %v", k, v))
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Init configures the shared logger. In development everything also goes to
// stderr; elsewhere output is rotated through lumberjack.
func Init(env, logFile string) {
	once.Do(func() {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}

		var out io.Writer = rotated
		if env == "development" {
			out = io.MultiWriter(os.Stderr, rotated)
		}
		Logger.SetOutput(out)
		Logger.SetFormatter(&CustomFormatter{SystemName: "teamon-core"})
		Logger.SetLevel(logrus.InfoLevel)

		Logger.Infof("Logger initialized, output to: %s", logFile)
	})
}
