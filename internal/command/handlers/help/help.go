// Package help реализует NR-команду help для вывода списка всех доступных команд.
// Помимо команд выводятся их deprecated-алиасы и основные переменные окружения.
package help

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Kargones/apk-restore/internal/command"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/pkg/output"
	"github.com/Kargones/apk-restore/internal/pkg/tracing"
)

func RegisterCmd() error {
	return command.Register(&Handler{})
}

// Data содержит информацию обо всех доступных командах.
type Data struct {
	// Commands — команды, зарегистрированные в Registry.
	Commands []CommandInfo `json:"commands"`
}

// CommandInfo описывает одну команду.
type CommandInfo struct {
	// Name — имя команды.
	Name string `json:"name"`
	// Description — описание команды.
	Description string `json:"description"`
	// Deprecated — true если команда deprecated.
	Deprecated bool `json:"deprecated,omitempty"`
	// NewName — новое имя команды (если deprecated).
	NewName string `json:"new_name,omitempty"`
}

// Handler обрабатывает команду help.
type Handler struct{}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActHelp
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Вывод списка доступных команд"
}

// Execute выполняет команду help: собирает список команд и выводит результат.
func (h *Handler) Execute(ctx context.Context, _ *config.Config) error {
	start := time.Now()

	helpData := buildData()

	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = tracing.GenerateTraceID()
	}

	format := os.Getenv("BR_OUTPUT_FORMAT")

	// Текстовый формат — специализированный вывод без metadata (trace_id, duration_ms).
	// Metadata доступна только в JSON формате (аналогично nr-version).
	if format != output.FormatJSON {
		return helpData.writeText(os.Stdout)
	}

	// JSON формат — стандартный Result.
	result := &output.Result{
		Status:  output.StatusSuccess,
		Command: constants.ActHelp,
		Data:    helpData,
		Metadata: &output.Metadata{
			DurationMs: time.Since(start).Milliseconds(),
			TraceID:    traceID,
			APIVersion: constants.APIVersion,
		},
	}

	writer := output.NewWriter(format)
	return writer.Write(os.Stdout, result)
}

// buildData собирает информацию обо всех доступных командах.
func buildData() *Data {
	data := &Data{}

	allHandlers := command.All()
	for name, handler := range allHandlers {
		info := CommandInfo{
			Name:        name,
			Description: handler.Description(),
		}

		// Проверяем deprecated статус через опциональный interface
		if dep, ok := handler.(command.Deprecatable); ok && dep.IsDeprecated() {
			info.Deprecated = true
			info.NewName = dep.NewName()
		}

		data.Commands = append(data.Commands, info)
	}
	sort.Slice(data.Commands, func(i, j int) bool {
		return data.Commands[i].Name < data.Commands[j].Name
	})

	return data
}

// writeText выводит информацию о командах в человекочитаемом формате.
func (d *Data) writeText(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("apk-restore — планировщик восстановления баз MS SQL Server\n")
	sb.WriteString("\nКоманды:\n")

	// Определяем максимальную длину имени для выравнивания
	maxLen := 0
	for _, cmd := range d.Commands {
		if len(cmd.Name) > maxLen {
			maxLen = len(cmd.Name)
		}
	}

	for _, cmd := range d.Commands {
		desc := cmd.Description
		if cmd.Deprecated {
			desc = fmt.Sprintf("[deprecated → %s] %s", cmd.NewName, desc)
		}
		fmt.Fprintf(&sb, "  %-*s  %s\n", maxLen, cmd.Name, desc)
	}

	sb.WriteString("\nОпции:\n")
	sb.WriteString("  BR_OUTPUT_FORMAT=json      Машиночитаемый вывод\n")
	sb.WriteString("  BR_RESTORE_TIME=...        Целевое время восстановления (RFC3339)\n")
	sb.WriteString("  BR_DATABASES=db1,db2       Явный список баз данных\n")
	sb.WriteString("  BR_SOURCE=mssql|file       Источник истории бэкапов\n")
	sb.WriteString("  BR_IGNORE_LOGS=true        Не включать журнальные бэкапы в план\n")
	sb.WriteString("  BR_IGNORE_DIFFS=true       Не включать разностные бэкапы в план\n")

	_, err := fmt.Fprint(w, sb.String())
	return err
}
