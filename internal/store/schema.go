package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names.
const (
	tableThemes   = "themes"
	tablePlans    = "plans"
	tableSessions = "sessions"
	tableDrafts   = "block_drafts"
)

var (
	themesTable = schema.NewTable(tableThemes).
			AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt}).
			AddColumn(&schema.Column{Name: "title", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "estimated_hours", Type: field.TypeFloat64, Default: 0}).
			AddColumn(&schema.Column{Name: "complexity", Type: field.TypeString, Default: "MEDIUM"}).
			AddColumn(&schema.Column{Name: "part_count", Type: field.TypeInt, Default: 1}).
			AddColumn(&schema.Column{Name: "block_id", Type: field.TypeInt, Default: 0})

	plansTable = schema.NewTable(tablePlans).
			AddPrimary(&schema.Column{Name: "id", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "user_id", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "start_date", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "exam_date", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "methodology", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "topics_per_day", Type: field.TypeInt, Default: 3}).
			AddColumn(&schema.Column{Name: "status", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "buffer_days", Type: field.TypeInt, Default: 30}).
			AddColumn(&schema.Column{Name: "weekly_schedule", Type: field.TypeJSON}).
			AddColumn(&schema.Column{Name: "topics", Type: field.TypeJSON}).
			AddColumn(&schema.Column{Name: "blocks", Type: field.TypeJSON, Nullable: true}).
			AddColumn(&schema.Column{Name: "available_daily_minutes", Type: field.TypeInt, Default: 0}).
			AddColumn(&schema.Column{Name: "generation_state", Type: field.TypeString, Default: string(GenerationQueued)}).
			AddColumn(&schema.Column{Name: "generation_error", Type: field.TypeString, Default: ""}).
			AddColumn(&schema.Column{Name: "strategy", Type: field.TypeString, Default: ""}).
			AddColumn(&schema.Column{Name: "warnings", Type: field.TypeJSON, Nullable: true}).
			AddColumn(&schema.Column{Name: "created_at", Type: field.TypeTime}).
			AddColumn(&schema.Column{Name: "updated_at", Type: field.TypeTime}).
			AddIndex("plan_user_id_status", false, []string{"user_id", "status"}).
			AddIndex("plan_generation_state", false, []string{"generation_state"})

	sessionsTable = schema.NewTable(tableSessions).
			AddPrimary(&schema.Column{Name: "id", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "plan_id", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "seq", Type: field.TypeInt}).
			AddColumn(&schema.Column{Name: "theme_id", Type: field.TypeInt}).
			AddColumn(&schema.Column{Name: "part_index", Type: field.TypeInt, Default: 0}).
			AddColumn(&schema.Column{Name: "part_label", Type: field.TypeString, Default: ""}).
			AddColumn(&schema.Column{Name: "date", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "hours", Type: field.TypeFloat64}).
			AddColumn(&schema.Column{Name: "type", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "status", Type: field.TypeString, Default: "PENDING"}).
			AddColumn(&schema.Column{Name: "completed_hours", Type: field.TypeFloat64, Nullable: true}).
			AddColumn(&schema.Column{Name: "notes", Type: field.TypeString, Default: ""}).
			AddIndex("session_plan_id_date", false, []string{"plan_id", "date"})

	draftsTable = schema.NewTable(tableDrafts).
			AddPrimary(&schema.Column{Name: "user_id", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "data", Type: field.TypeJSON}).
			AddColumn(&schema.Column{Name: "updated_at", Type: field.TypeTime})

	tables = []*schema.Table{themesTable, plansTable, sessionsTable, draftsTable}
)

func init() {
	sessionsTable.AddForeignKey(&schema.ForeignKey{
		Symbol:     "sessions_plans_sessions",
		Columns:    []*schema.Column{sessionsTable.Columns[1]},
		RefTable:   plansTable,
		RefColumns: []*schema.Column{plansTable.Columns[0]},
		OnDelete:   schema.Cascade,
	})
}

// migrate creates or upgrades the tables in place.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv, schema.WithForeignKeys(true))
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
