package chain

// Коды ошибок выбора цепочки восстановления.
// Иерархический формат CATEGORY.SPECIFIC позволяет grep по категории: `grep "CHAIN\."`.
const (
	// ErrNoFullBackupFound — не найден подходящий полный бэкап и восстановление
	// не является продолжением. Фатально для базы данных, пакет продолжается.
	ErrNoFullBackupFound = "CHAIN.NO_FULL_BACKUP_FOUND"

	// ErrFileMetadataMissing — для выбранного набора не удалось разрешить
	// список физических файлов. Фатально для базы данных.
	ErrFileMetadataMissing = "CHAIN.FILE_METADATA_MISSING"

	// ErrMultiDBContinuation — переименование целевой базы в сочетании
	// с продолжением более чем одной базы данных. Фатально для всего запуска,
	// проверяется до обработки первой базы.
	ErrMultiDBContinuation = "CHAIN.MULTI_DB_CONTINUATION_UNSUPPORTED"
)
