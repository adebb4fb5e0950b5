// Package version хранит данные сборки, заданные через -ldflags:
//
//	-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// GetVersion версия сборки для health-ответа.
func GetVersion() string { return version }

// Fields данные сборки для стартового лога.
func Fields() log.Fields {
	return log.Fields{"version": version, "commit": commit, "build_date": date}
}

// UserAgent строка user-agent для исходящих gRPC-вызовов утилит.
func UserAgent(component string) string {
	if component == "" {
		component = "client"
	}
	return fmt.Sprintf("storefront-%s/%s", component, version)
}
