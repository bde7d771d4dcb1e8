package config

import "os"

func IsDebug() bool {
	return os.Getenv("LUX_DEBUG") == "1"
}
