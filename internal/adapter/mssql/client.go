// Package mssql предоставляет реализацию клиента для работы с Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	// blank import для драйвера SQL Server
	_ "github.com/denisenkom/go-mssqldb"

	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// Compile-time проверка реализации интерфейса
var _ Client = (*client)(nil)

// ClientOptions содержит параметры для создания MSSQL клиента.
type ClientOptions struct {
	// Server — адрес сервера MSSQL
	Server string
	// Port — порт сервера (по умолчанию 1433)
	Port int
	// User — имя пользователя
	User string
	// Password — пароль пользователя
	Password string
	// Database — имя базы данных для подключения (обычно "msdb")
	Database string
	// Timeout — таймаут подключения
	Timeout time.Duration
	// Encrypt — использовать TLS шифрование (по умолчанию true для безопасности)
	// ВАЖНО: Если Encrypt=false и encryptSet=false, будет использовано значение true по умолчанию.
	// Для явного отключения шифрования используйте NewClientWithEncrypt(opts, false).
	Encrypt bool
	// encryptSet — внутренний флаг, указывающий что Encrypt был явно задан.
	// Это приватное поле, не экспортируется. Для явного контроля шифрования
	// используйте конструктор NewClientWithEncrypt вместо NewClient.
	encryptSet bool
}

// client — реализация интерфейса Client для MSSQL.
type client struct {
	db   *sql.DB
	opts ClientOptions
}

// NewClient создаёт новый MSSQL клиент с указанными параметрами.
// Примечание: подключение устанавливается отложенно при первом запросе или через Connect().
func NewClient(opts ClientOptions) (Client, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("%s: server is required", ErrMSSQLConnect)
	}
	// Установка значений по умолчанию
	if opts.Port == 0 {
		opts.Port = 1433
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("%s: invalid port %d, must be between 1 and 65535", ErrMSSQLConnect, opts.Port)
	}
	if opts.Database == "" {
		opts.Database = "msdb"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	// По умолчанию включаем шифрование для безопасности.
	// Если encryptSet=false, значит Encrypt не был явно задан — используем true.
	if !opts.encryptSet {
		opts.Encrypt = true
	}

	return &client{
		opts: opts,
	}, nil
}

// NewClientWithEncrypt создаёт MSSQL клиент с явным указанием режима шифрования.
// Используйте этот конструктор для явного контроля над TLS.
func NewClientWithEncrypt(opts ClientOptions, encrypt bool) (Client, error) {
	opts.Encrypt = encrypt
	opts.encryptSet = true
	return NewClient(opts)
}

// newClientWithDB создаёт клиент поверх готового *sql.DB. Только для тестов (sqlmock).
func newClientWithDB(db *sql.DB) *client {
	return &client{db: db}
}

// Connect устанавливает соединение с сервером MSSQL.
func (c *client) Connect(ctx context.Context) error {
	encryptMode := "true"
	if !c.opts.Encrypt {
		encryptMode = "disable"
	}

	// Экранируем параметры для защиты от инъекций в connection string.
	connString := fmt.Sprintf(
		"server=%s;user id=%s;password=%s;port=%d;database=%s;encrypt=%s;connection timeout=%d",
		escapeConnStringParam(c.opts.Server),
		escapeConnStringParam(c.opts.User),
		escapeConnStringParam(c.opts.Password),
		c.opts.Port,
		escapeConnStringParam(c.opts.Database),
		encryptMode,
		int(c.opts.Timeout.Seconds()),
	)

	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMSSQLConnect, err)
	}

	// Проверяем подключение; ctx.Err() даёт более точную диагностику причины.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() // best-effort close; original error is more important
		if ctx.Err() != nil {
			return fmt.Errorf("%s: context cancelled during ping: %w", ErrMSSQLConnect, ctx.Err())
		}
		return fmt.Errorf("%s: ping failed: %w", ErrMSSQLConnect, err)
	}

	c.db = db
	return nil
}

// escapeConnStringParam экранирует параметр для безопасного использования в connection string.
// Защищает от инъекции управляющих символов (; = и др.) в DSN.
func escapeConnStringParam(s string) string {
	// go-mssqldb использует URL-подобный формат, где ; и = имеют особое значение
	return url.QueryEscape(s)
}

// Close закрывает соединение с сервером.
func (c *client) Close() error {
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// Ping проверяет доступность сервера.
func (c *client) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("%s: connection not established", ErrMSSQLConnect)
	}
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrMSSQLConnect, err)
	}
	return nil
}

// historyQuery выбирает историю бэкапов из msdb: по одной строке на
// физический файл набора. LSN конвертируются в varchar на стороне сервера:
// decimal(25,0) не помещается в int64, разбор выполняется клиентом.
// Типы наборов: D — полный, I — разностный, L — журнал транзакций.
const historyQuery = `
SELECT
	bs.database_name,
	bs.server_name,
	bs.type,
	bs.backup_start_date,
	bs.backup_finish_date,
	CONVERT(varchar(32), bs.first_lsn),
	CONVERT(varchar(32), bs.last_lsn),
	CONVERT(varchar(32), bs.checkpoint_lsn),
	CONVERT(varchar(32), bs.database_backup_lsn),
	CONVERT(varchar(64), bs.backup_set_uuid),
	bmf.physical_device_name,
	CONVERT(varchar(64), bs.first_recovery_fork_guid)
FROM msdb.dbo.backupset bs
	JOIN msdb.dbo.backupmediafamily bmf ON bs.media_set_id = bmf.media_set_id
WHERE bs.type IN ('D', 'I', 'L')
	AND bs.backup_finish_date IS NOT NULL
	AND bs.backup_finish_date >= @p1
ORDER BY bs.backup_finish_date, bs.backup_set_id;
`

// BackupHistory возвращает нормализованную историю бэкапов из msdb.
// Строки с неразборными LSN не прерывают выборку: их базы данных
// помечаются в History.Invalid, записи остальных баз сохраняются.
func (c *client) BackupHistory(ctx context.Context, opts HistoryOptions) (*backup.History, error) {
	if c.db == nil {
		return nil, fmt.Errorf("%s: connection not established", ErrMSSQLQuery)
	}

	queryCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	since := opts.Since
	if since.IsZero() {
		since = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rows, err := c.db.QueryContext(queryCtx, historyQuery, since)
	if err != nil {
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s: history query timed out after %v", ErrMSSQLTimeout, opts.Timeout)
		}
		return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}
	defer rows.Close()

	wanted := make(map[string]struct{}, len(opts.Databases))
	for _, db := range opts.Databases {
		wanted[db] = struct{}{}
	}

	history := &backup.History{}
	for rows.Next() {
		var (
			database, serverName, typeCode string
			start, end                     time.Time
			firstLSN, lastLSN              string
			checkpointLSN, dbBackupLSN     sql.NullString
			setID, fileName                string
			forkID                         sql.NullString
		)
		if err := rows.Scan(&database, &serverName, &typeCode, &start, &end,
			&firstLSN, &lastLSN, &checkpointLSN, &dbBackupLSN,
			&setID, &fileName, &forkID); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
		}

		if len(wanted) > 0 {
			if _, ok := wanted[database]; !ok {
				continue
			}
		}
		if _, bad := history.Invalid[database]; bad {
			continue
		}

		desc, err := buildDescriptor(database, serverName, typeCode, start, end,
			firstLSN, lastLSN, checkpointLSN.String, dbBackupLSN.String,
			setID, fileName, forkID.String)
		if err != nil {
			history.AddInvalid(database, err)
			history.Descriptors = dropDatabase(history.Descriptors, database)
			continue
		}
		history.Descriptors = append(history.Descriptors, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}

	return history, nil
}

// buildDescriptor собирает дескриптор из сырой строки истории.
// Неразборный LSN или перевёрнутый диапазон журнала делает всю
// историю базы недостоверной.
func buildDescriptor(database, serverName, typeCode string, start, end time.Time,
	firstLSN, lastLSN, checkpointLSN, dbBackupLSN, setID, fileName, forkID string) (backup.Descriptor, error) {

	backupType, err := typeFromCode(typeCode)
	if err != nil {
		return backup.Descriptor{}, err
	}

	desc := backup.Descriptor{
		Database:       database,
		ServerName:     serverName,
		Type:           backupType,
		Start:          start,
		End:            end,
		BackupSetID:    setID,
		FileNames:      []string{fileName},
		RecoveryForkID: forkID,
	}
	if desc.FirstLSN, err = backup.ParseLSN(firstLSN); err != nil {
		return backup.Descriptor{}, err
	}
	if desc.LastLSN, err = backup.ParseLSN(lastLSN); err != nil {
		return backup.Descriptor{}, err
	}
	// checkpoint_lsn и database_backup_lsn допускают NULL (первый Full базы).
	if checkpointLSN != "" {
		if desc.CheckpointLSN, err = backup.ParseLSN(checkpointLSN); err != nil {
			return backup.Descriptor{}, err
		}
	}
	if dbBackupLSN != "" {
		if desc.DatabaseBackupLSN, err = backup.ParseLSN(dbBackupLSN); err != nil {
			return backup.Descriptor{}, err
		}
	}
	if err := desc.Validate(); err != nil {
		return backup.Descriptor{}, err
	}
	return desc, nil
}

// typeFromCode переводит код типа msdb в тип бэкапа.
func typeFromCode(code string) (backup.Type, error) {
	switch code {
	case "D":
		return backup.TypeFull, nil
	case "I":
		return backup.TypeDifferential, nil
	case "L":
		return backup.TypeLog, nil
	default:
		return 0, fmt.Errorf("%s: unknown backup set type %q", ErrMSSQLQuery, code)
	}
}

// dropDatabase удаляет уже собранные дескрипторы базы данных.
// Вызывается при обнаружении неразборной строки: частичная история
// хуже отсутствующей.
func dropDatabase(descs []backup.Descriptor, database string) []backup.Descriptor {
	kept := descs[:0]
	for _, d := range descs {
		if d.Database != database {
			kept = append(kept, d)
		}
	}
	return kept
}

// restoreStateQuery выбирает точки продолжения баз в состоянии RESTORING.
// redo_start_lsn и differential_base_lsn берутся из первичного файла данных.
const restoreStateQuery = `
SELECT
	d.name,
	CONVERT(varchar(32), mf.redo_start_lsn),
	CONVERT(varchar(32), mf.differential_base_lsn),
	CONVERT(varchar(64), mf.redo_start_fork_guid)
FROM sys.databases d
	JOIN sys.master_files mf ON d.database_id = mf.database_id AND mf.file_id = 1
WHERE d.state_desc = 'RESTORING';
`

// lastRestoreQuery выбирает тип последнего применённого шага восстановления
// по каждой базе данных из msdb.dbo.restorehistory.
const lastRestoreQuery = `
SELECT rh.destination_database_name, rh.restore_type
FROM msdb.dbo.restorehistory rh
	JOIN (
		SELECT destination_database_name, MAX(restore_history_id) AS last_id
		FROM msdb.dbo.restorehistory
		GROUP BY destination_database_name
	) latest ON rh.restore_history_id = latest.last_id;
`

// RestoreState возвращает состояние прерванных восстановлений:
// точки продолжения и последние применённые шаги по базам данных.
func (c *client) RestoreState(ctx context.Context) (*backup.RestoreState, error) {
	if c.db == nil {
		return nil, fmt.Errorf("%s: connection not established", ErrMSSQLQuery)
	}

	state := &backup.RestoreState{
		Points:       make(map[string]backup.ContinuationPoint),
		LastRestores: make(map[string]backup.LastRestoreRecord),
	}

	rows, err := c.db.QueryContext(ctx, restoreStateQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			database          string
			redoLSN, diffBase sql.NullString
			forkID            sql.NullString
		)
		if err := rows.Scan(&database, &redoLSN, &diffBase, &forkID); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
		}
		// База без redo_start_lsn восстанавливаема только с нового Full —
		// точки продолжения у неё нет.
		if !redoLSN.Valid || redoLSN.String == "" {
			continue
		}
		point := backup.ContinuationPoint{
			Database:       database,
			RecoveryForkID: forkID.String,
		}
		if point.RedoStartLSN, err = backup.ParseLSN(redoLSN.String); err != nil {
			return nil, err
		}
		if diffBase.Valid && diffBase.String != "" {
			if point.DifferentialBaseLSN, err = backup.ParseLSN(diffBase.String); err != nil {
				return nil, err
			}
		}
		state.Points[database] = point
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}

	if err := c.loadLastRestores(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// loadLastRestores дополняет состояние типами последних применённых шагов.
func (c *client) loadLastRestores(ctx context.Context, state *backup.RestoreState) error {
	rows, err := c.db.QueryContext(ctx, lastRestoreQuery)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var database, typeCode string
		if err := rows.Scan(&database, &typeCode); err != nil {
			return fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
		}
		restoreType, err := typeFromCode(typeCode)
		if err != nil {
			// restorehistory содержит и шаги вне нашей модели (F, V и др.) —
			// они не влияют на применимость differential.
			continue
		}
		state.LastRestores[database] = backup.LastRestoreRecord{
			Database: database,
			Type:     restoreType,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: %w", ErrMSSQLQuery, err)
	}
	return nil
}
