// Package historyfile предоставляет оффлайн-провайдера истории бэкапов
// и состояния продолжения из JSON файлов. Используется, когда msdb
// сервера-источника недоступна: история выгружается заранее и
// передаётся планировщику файлом.
//
// Файлы проверяются по встроенным JSON Schema до разбора: структурные
// ошибки фатальны для всего файла, а некорректный LSN изолирует только
// свою базу данных.
package historyfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
)

//go:embed history.schema.json
var historySchemaJSON string

//go:embed continuation.schema.json
var continuationSchemaJSON string

// historyDocument — формат файла истории.
type historyDocument struct {
	// ServerName — имя сервера по умолчанию для записей без собственного.
	ServerName string `json:"server_name"`
	// Backups — записи истории, по одной на физический файл набора.
	Backups []backupRecord `json:"backups"`
}

// backupRecord — одна запись файла истории. LSN хранятся строками:
// разбор выполняется отдельно, чтобы ошибка изолировала только свою базу.
type backupRecord struct {
	Database          string    `json:"database"`
	ServerName        string    `json:"server_name"`
	Type              string    `json:"type"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	FirstLSN          string    `json:"first_lsn"`
	LastLSN           string    `json:"last_lsn"`
	CheckpointLSN     string    `json:"checkpoint_lsn"`
	DatabaseBackupLSN string    `json:"database_backup_lsn"`
	BackupSetID       string    `json:"backup_set_id"`
	FileNames         []string  `json:"file_names"`
	RecoveryForkID    string    `json:"recovery_fork_id"`
}

// continuationDocument — формат файла состояния продолжения.
type continuationDocument struct {
	Points []struct {
		Database            string `json:"database"`
		RedoStartLSN        string `json:"redo_start_lsn"`
		DifferentialBaseLSN string `json:"differential_base_lsn"`
		RecoveryForkID      string `json:"recovery_fork_id"`
	} `json:"points"`
	LastRestores []struct {
		Database string `json:"database"`
		Type     string `json:"type"`
	} `json:"last_restores"`
}

// Provider читает историю бэкапов и состояние продолжения из JSON файлов.
type Provider struct {
	historySchema      *jsonschema.Schema
	continuationSchema *jsonschema.Schema
}

// NewProvider создаёт провайдера со скомпилированными встроенными схемами.
func NewProvider() (*Provider, error) {
	historySchema, err := compileSchema("history.schema.json", historySchemaJSON)
	if err != nil {
		return nil, err
	}
	continuationSchema, err := compileSchema("continuation.schema.json", continuationSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &Provider{
		historySchema:      historySchema,
		continuationSchema: continuationSchema,
	}, nil
}

// compileSchema компилирует встроенную JSON Schema.
func compileSchema(name, text string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryValidate,
			fmt.Sprintf("встроенная схема %s не разбирается", name), err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryValidate,
			fmt.Sprintf("встроенная схема %s не регистрируется", name), err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryValidate,
			fmt.Sprintf("встроенная схема %s не компилируется", name), err)
	}
	return schema, nil
}

// LoadHistory читает и валидирует файл истории бэкапов.
// Записи с неразборными LSN, перевёрнутым диапазоном журнала или
// неизвестным типом не прерывают загрузку: их базы данных помечаются
// в History.Invalid.
func (p *Provider) LoadHistory(path string) (*backup.History, error) {
	data, err := p.readValidated(path, p.historySchema)
	if err != nil {
		return nil, err
	}

	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryLoad,
			fmt.Sprintf("файл истории %s не разбирается", path), err)
	}

	history := &backup.History{}
	for i := range doc.Backups {
		rec := &doc.Backups[i]
		if _, bad := history.Invalid[rec.Database]; bad {
			continue
		}
		desc, err := rec.toDescriptor(doc.ServerName)
		if err != nil {
			history.AddInvalid(rec.Database, err)
			history.Descriptors = dropDatabase(history.Descriptors, rec.Database)
			continue
		}
		history.Descriptors = append(history.Descriptors, desc)
	}
	return history, nil
}

// LoadState читает и валидирует файл состояния продолжения.
func (p *Provider) LoadState(path string) (*backup.RestoreState, error) {
	data, err := p.readValidated(path, p.continuationSchema)
	if err != nil {
		return nil, err
	}

	var doc continuationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryLoad,
			fmt.Sprintf("файл состояния %s не разбирается", path), err)
	}

	state := &backup.RestoreState{
		Points:       make(map[string]backup.ContinuationPoint),
		LastRestores: make(map[string]backup.LastRestoreRecord),
	}
	for _, rec := range doc.Points {
		point := backup.ContinuationPoint{
			Database:       rec.Database,
			RecoveryForkID: rec.RecoveryForkID,
		}
		if point.RedoStartLSN, err = backup.ParseLSN(rec.RedoStartLSN); err != nil {
			return nil, err
		}
		if rec.DifferentialBaseLSN != "" {
			if point.DifferentialBaseLSN, err = backup.ParseLSN(rec.DifferentialBaseLSN); err != nil {
				return nil, err
			}
		}
		state.Points[rec.Database] = point
	}
	for _, rec := range doc.LastRestores {
		restoreType, err := typeFromName(rec.Type)
		if err != nil {
			return nil, err
		}
		state.LastRestores[rec.Database] = backup.LastRestoreRecord{
			Database: rec.Database,
			Type:     restoreType,
		}
	}
	return state, nil
}

// readValidated читает файл и проверяет его по схеме.
func (p *Provider) readValidated(path string, schema *jsonschema.Schema) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // путь задаётся оператором через конфигурацию
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryLoad,
			fmt.Sprintf("файл %s не читается", path), err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryLoad,
			fmt.Sprintf("файл %s не является корректным JSON", path), err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrHistoryValidate,
			fmt.Sprintf("файл %s не соответствует схеме", path), err)
	}
	return data, nil
}

// toDescriptor переводит запись файла в дескриптор.
func (r *backupRecord) toDescriptor(defaultServer string) (backup.Descriptor, error) {
	backupType, err := typeFromName(r.Type)
	if err != nil {
		return backup.Descriptor{}, err
	}

	serverName := r.ServerName
	if serverName == "" {
		serverName = defaultServer
	}

	desc := backup.Descriptor{
		Database:       r.Database,
		ServerName:     serverName,
		Type:           backupType,
		Start:          r.Start,
		End:            r.End,
		BackupSetID:    r.BackupSetID,
		FileNames:      r.FileNames,
		RecoveryForkID: r.RecoveryForkID,
	}
	if desc.FirstLSN, err = backup.ParseLSN(r.FirstLSN); err != nil {
		return backup.Descriptor{}, err
	}
	if desc.LastLSN, err = backup.ParseLSN(r.LastLSN); err != nil {
		return backup.Descriptor{}, err
	}
	if r.CheckpointLSN != "" {
		if desc.CheckpointLSN, err = backup.ParseLSN(r.CheckpointLSN); err != nil {
			return backup.Descriptor{}, err
		}
	}
	if r.DatabaseBackupLSN != "" {
		if desc.DatabaseBackupLSN, err = backup.ParseLSN(r.DatabaseBackupLSN); err != nil {
			return backup.Descriptor{}, err
		}
	}
	if err := desc.Validate(); err != nil {
		return backup.Descriptor{}, err
	}
	return desc, nil
}

// typeFromName переводит строковое имя типа в тип бэкапа.
func typeFromName(name string) (backup.Type, error) {
	switch name {
	case "full":
		return backup.TypeFull, nil
	case "differential":
		return backup.TypeDifferential, nil
	case "log":
		return backup.TypeLog, nil
	default:
		return 0, apperrors.NewAppError(apperrors.ErrHistoryLoad,
			fmt.Sprintf("неизвестный тип бэкапа %q", name), nil)
	}
}

// dropDatabase удаляет уже собранные дескрипторы базы данных:
// частичная история хуже отсутствующей.
func dropDatabase(descs []backup.Descriptor, database string) []backup.Descriptor {
	kept := descs[:0]
	for _, d := range descs {
		if d.Database != database {
			kept = append(kept, d)
		}
	}
	return kept
}
