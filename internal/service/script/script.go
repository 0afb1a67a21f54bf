// Package script генерирует RESTORE T-SQL скрипты по планам восстановления.
// Скрипт предназначен для ручного исполнения оператором или внешним
// движком: сам планировщик никогда не выполняет RESTORE.
package script

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// stopAtLayout — формат времени STOPAT, принимаемый SQL Server.
const stopAtLayout = "2006-01-02T15:04:05"

// Options задаёт параметры генерации скрипта.
type Options struct {
	// RenameTo — имя целевой базы; пустое — восстановление под исходным именем.
	RenameTo string
	// Recovery — завершить скрипт переводом базы в доступное состояние.
	// false оставляет базу в RESTORING для последующего продолжения.
	Recovery bool
}

// Render генерирует T-SQL скрипт восстановления по плану одной базы данных.
//
// Все шаги применяются WITH NORECOVERY; STOPAT добавляется только
// граничному журналу — внутренние журналы применяются целиком.
// Placeholder продолжения не исполняется и отражается комментарием.
func Render(plan *backup.DatabasePlan, opts Options) string {
	target := plan.Database
	if opts.RenameTo != "" {
		target = opts.RenameTo
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- База данных: %s\n", plan.Database)
	fmt.Fprintf(&b, "-- Момент восстановления: %s\n", plan.RestoreTime.Format(time.RFC3339))
	if opts.RenameTo != "" {
		fmt.Fprintf(&b, "-- Восстановление под именем: %s\n", opts.RenameTo)
	}
	b.WriteString("\n")

	for _, e := range plan.Entries {
		writeEntry(&b, target, plan.RestoreTime, e)
	}

	if opts.Recovery {
		fmt.Fprintf(&b, "RESTORE DATABASE %s WITH RECOVERY;\n", quoteName(target))
	}
	return b.String()
}

// writeEntry генерирует один RESTORE шаг.
func writeEntry(b *strings.Builder, target string, restoreTime time.Time, e backup.PlanEntry) {
	if e.Placeholder {
		b.WriteString("-- Продолжение прерванного восстановления: полный бэкап уже применён.\n\n")
		return
	}

	verb := "DATABASE"
	if e.Type == backup.TypeLog {
		verb = "LOG"
	}

	fmt.Fprintf(b, "RESTORE %s %s\nFROM %s\nWITH NORECOVERY", verb, quoteName(target), diskClause(e.FileNames))
	if e.Boundary {
		fmt.Fprintf(b, ", STOPAT = '%s'", restoreTime.Format(stopAtLayout))
	}
	b.WriteString(";\n\n")
}

// diskClause собирает FROM-перечень физических файлов набора.
func diskClause(files []string) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("DISK = N'%s'", strings.ReplaceAll(f, "'", "''")))
	}
	return strings.Join(parts, ",\n     ")
}

// quoteName экранирует имя базы данных для T-SQL.
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
