package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "FLOW_DATABASE_TYPE"
const DATABASE_URL = "FLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "FLOW_DATABASE_SQLLITE_FILE_NAME"
const ENGINE_SERVER_WEB_PORT = "FLOW_ENGINE_SERVER_WEB_PORT"
const ENGINE_POLL_INTERVAL = "FLOW_ENGINE_POLL_INTERVAL"
const ENGINE_RECLAIM_INTERVAL = "FLOW_ENGINE_RECLAIM_INTERVAL"
const ENGINE_CLAIM_TIMEOUT_MINUTES = "FLOW_ENGINE_CLAIM_TIMEOUT_MINUTES"
const ENGINE_BATCH_SIZE = "FLOW_ENGINE_BATCH_SIZE"     //number of due actions to pull from the database at a time
const ENGINE_WORKER_COUNT = "FLOW_ENGINE_WORKER_COUNT" //number of workers ie the parallel nature of action execution
const ENGINE_MAX_ATTEMPTS = "FLOW_ENGINE_MAX_ATTEMPTS"
const ENGINE_RETRY_INTERVAL_MIN = "FLOW_ENGINE_RETRY_INTERVAL_MIN"
const ENGINE_RETRY_INTERVAL_MAX = "FLOW_ENGINE_RETRY_INTERVAL_MAX"
const ENGINE_HANDLER_TIMEOUT = "FLOW_ENGINE_HANDLER_TIMEOUT"
const ENGINE_RETRIGGER_DEPTH_LIMIT = "FLOW_ENGINE_RETRIGGER_DEPTH_LIMIT"
const EXECUTOR_NAME = "FLOW_EXECUTOR_NAME"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == ENGINE_POLL_INTERVAL {
		return "3s"
	}
	if settingKey == ENGINE_RECLAIM_INTERVAL {
		return "60s"
	}
	if settingKey == ENGINE_CLAIM_TIMEOUT_MINUTES {
		return "5"
	}
	if settingKey == ENGINE_BATCH_SIZE {
		return "10"
	}
	if settingKey == ENGINE_WORKER_COUNT {
		return "5"
	}
	if settingKey == ENGINE_MAX_ATTEMPTS {
		return "5"
	}
	if settingKey == ENGINE_RETRY_INTERVAL_MIN {
		return "30s"
	}
	if settingKey == ENGINE_RETRY_INTERVAL_MAX {
		return "30m"
	}
	if settingKey == ENGINE_HANDLER_TIMEOUT {
		return "60s"
	}
	if settingKey == ENGINE_RETRIGGER_DEPTH_LIMIT {
		return "5"
	}
	if settingKey == ENGINE_SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./flowengine.db"
	}
	return ""
}
