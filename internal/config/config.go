package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/units"
)

type Config struct {
	Port                 string
	DBURL                string
	RedisAddr            string
	PlanTimezone         *time.Location
	CalorieFloor         units.Calories
	RecomputeConcurrency int
	LockTTL              time.Duration
	CORSOrigins          []string
}

// LoadDotEnv reads .env when present. A missing file is not an error; deployed
// environments set real env vars.
func LoadDotEnv(log *logger.Logger) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Could not parse .env file", "error", err)
	}
}

func Load(log *logger.Logger) (Config, error) {
	tzName := GetEnv("PLAN_TIMEZONE", "UTC", log)
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("invalid PLAN_TIMEZONE %q: %w", tzName, err)
	}

	floor := GetEnvAsInt("CALORIE_FLOOR", 1200, log)
	if floor < 800 {
		return Config{}, fmt.Errorf("CALORIE_FLOOR must be at least 800, got %d", floor)
	}

	concurrency := GetEnvAsInt("RECOMPUTE_CONCURRENCY", 4, log)
	if concurrency < 1 {
		concurrency = 1
	}

	var origins []string
	for _, o := range strings.Split(GetEnv("CORS_ORIGINS", "", log), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Port:                 GetEnv("PORT", "3000", log),
		DBURL:                GetEnv("DB_URL", "", log),
		RedisAddr:            strings.TrimSpace(GetEnv("REDIS_ADDR", "", log)),
		PlanTimezone:         loc,
		CalorieFloor:         units.Calories(floor),
		RecomputeConcurrency: concurrency,
		LockTTL:              time.Duration(GetEnvAsInt("LOCK_TTL_SECONDS", 30, log)) * time.Second,
		CORSOrigins:          origins,
	}, nil
}

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default", "providedVal", valStr, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}
