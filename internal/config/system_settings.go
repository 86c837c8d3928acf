package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "HFLOW_DATABASE_TYPE"
const DATABASE_URL = "HFLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "HFLOW_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "HFLOW_SERVER_WEB_PORT"

const NOTIFY_SWEEP_INTERVAL = "HFLOW_NOTIFY_SWEEP_INTERVAL"     //how often the delivery queue scans for due notifications
const NOTIFY_BATCH_SIZE = "HFLOW_NOTIFY_BATCH_SIZE"             //number of due notifications claimed per sweep
const NOTIFY_CHANNEL_WORKERS = "HFLOW_NOTIFY_CHANNEL_WORKERS"   //outbound senders per channel, bounds concurrency per channel
const NOTIFY_RETRY_BASE_SECONDS = "HFLOW_NOTIFY_RETRY_BASE_SECONDS"
const NOTIFY_RETRY_CAP_SECONDS = "HFLOW_NOTIFY_RETRY_CAP_SECONDS"
const NOTIFY_DEFAULT_MAX_RETRIES = "HFLOW_NOTIFY_DEFAULT_MAX_RETRIES"

const INTERVIEW_CONFLICT_POLICY = "HFLOW_INTERVIEW_CONFLICT_POLICY" //warn or block when a participant is double booked

const SMTP_ADDR = "HFLOW_SMTP_ADDR"
const SMTP_FROM = "HFLOW_SMTP_FROM"
const SMS_PROVIDER_URL = "HFLOW_SMS_PROVIDER_URL"
const PUSH_PROVIDER_URL = "HFLOW_PUSH_PROVIDER_URL"
const CHAT_WEBHOOK_URL = "HFLOW_CHAT_WEBHOOK_URL"
const WEBHOOK_SIGNING_SECRET = "HFLOW_WEBHOOK_SIGNING_SECRET"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

const CONFLICT_POLICY_WARN = "warn"
const CONFLICT_POLICY_BLOCK = "block"

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
	if settingKey == NOTIFY_SWEEP_INTERVAL {
		return "3s"
	}
	if settingKey == NOTIFY_BATCH_SIZE {
		return "50"
	}
	if settingKey == NOTIFY_CHANNEL_WORKERS {
		return "3"
	}
	if settingKey == NOTIFY_RETRY_BASE_SECONDS {
		return "30"
	}
	if settingKey == NOTIFY_RETRY_CAP_SECONDS {
		return "300"
	}
	if settingKey == NOTIFY_DEFAULT_MAX_RETRIES {
		return "3"
	}
	if settingKey == INTERVIEW_CONFLICT_POLICY {
		return CONFLICT_POLICY_WARN
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./hireflow.db"
	}
	return ""
}
