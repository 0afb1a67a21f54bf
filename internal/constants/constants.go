// Package constants содержит все константы, используемые в проекте apk-restore.
// Константы сгруппированы по их функциональному назначению для удобства использования и поддержки.
package constants

// Константы действий (команд)
const (
	// ActNRPlan - построение плана восстановления по истории бэкапов
	ActNRPlan = "nr-plan"
	// ActNRScript - генерация RESTORE T-SQL скрипта по построенному плану
	ActNRScript = "nr-script"
	// ActNRVersion - вывод версии приложения
	ActNRVersion = "nr-version"
	// ActHelp - вывод справки по командам
	ActHelp = "help"

	// ActPlan - deprecated алиас команды nr-plan
	ActPlan = "plan"
	// ActVersion - deprecated алиас команды nr-version
	ActVersion = "version"
)

// Константы источников истории бэкапов
const (
	// SourceMSSQL - история читается из msdb целевого сервера
	SourceMSSQL = "mssql"
	// SourceFile - история читается из JSON файла (offline режим)
	SourceFile = "file"
)

// APIVersion - версия формата JSON вывода (metadata.api_version)
const APIVersion = "v1"

// Переменные сборки, устанавливаются через -ldflags:
//
//	-X github.com/Kargones/apk-restore/internal/constants.Version=v1.2.3
//	-X github.com/Kargones/apk-restore/internal/constants.PreCommitHash=abcdef0
var (
	// Version - версия приложения
	Version = ""
	// PreCommitHash - хеш коммита на момент сборки
	PreCommitHash = ""
)

// AppName - имя приложения для логов, метрик и user agent
const AppName = "apk-restore"

// Константы сообщений приложения
const (
	// MsgAppExit - сообщение о завершении работы программы
	MsgAppExit = "Завершение работы программы"
	// MsgErrProcessing - сообщение об обработке ошибки
	MsgErrProcessing = "Обработка ошибки"
)
