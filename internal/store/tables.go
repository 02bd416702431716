package store

import (
	"strconv"

	"opsdesk/api/internal/sheetdb"
	"opsdesk/api/internal/sheets"
)

// Tab names inside the workbook. One tab per business table.
const (
	TabUsers         = "Users"
	TabDepartments   = "Departments"
	TabDelegations   = "Delegations"
	TabChecklists    = "Checklists"
	TabMinutes       = "Minutes"
	TabTickets       = "Tickets"
	TabTodos         = "Todos"
	TabChatMessages  = "ChatMessages"
	TabNotifications = "Notifications"
	TabOrders        = "Orders"
)

func col(name string, kind sheetdb.Kind) sheetdb.Column {
	return sheetdb.Column{Name: name, Kind: kind}
}

var stampColumns = []sheetdb.Column{
	col("created_at", sheetdb.KindDate),
	col("updated_at", sheetdb.KindDate),
}

func schemaWithStamps(columns ...sheetdb.Column) sheetdb.Schema {
	return sheetdb.NewSchema(append(columns, stampColumns...)...)
}

func (s *Store) def(tab string, schema sheetdb.Schema) sheetdb.TableDef {
	return sheetdb.TableDef{
		Table:  sheets.Table{SpreadsheetID: s.spreadsheetID, Tab: tab},
		Schema: schema,
	}
}

func (s *Store) usersDef() sheetdb.TableDef {
	return s.def(TabUsers, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("name", sheetdb.KindText),
		col("email", sheetdb.KindText),
		col("password_hash", sheetdb.KindText),
		col("role", sheetdb.KindText),
		col("department", sheetdb.KindText),
		col("active", sheetdb.KindBool),
	))
}

func (s *Store) departmentsDef() sheetdb.TableDef {
	return s.def(TabDepartments, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("name", sheetdb.KindText),
		col("head", sheetdb.KindText),
	))
}

func (s *Store) delegationsDef() sheetdb.TableDef {
	return s.def(TabDelegations, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("title", sheetdb.KindText),
		col("description", sheetdb.KindText),
		col("assigned_to", sheetdb.KindText),
		col("assigned_by", sheetdb.KindText),
		col("department", sheetdb.KindText),
		col("due_date", sheetdb.KindDate),
		col("status", sheetdb.KindText),
		col("done", sheetdb.KindBool),
	))
}

func (s *Store) checklistsDef() sheetdb.TableDef {
	return s.def(TabChecklists, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("question", sheetdb.KindText),
		col("assigned_to", sheetdb.KindText),
		col("due_date", sheetdb.KindDate),
		col("done", sheetdb.KindBool),
		col("notes", sheetdb.KindText),
	))
}

func (s *Store) minutesDef() sheetdb.TableDef {
	return s.def(TabMinutes, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("title", sheetdb.KindText),
		col("meeting_date", sheetdb.KindDate),
		col("attendees", sheetdb.KindJSON),
		col("decisions", sheetdb.KindText),
		col("follow_up", sheetdb.KindText),
	))
}

func (s *Store) ticketsDef() sheetdb.TableDef {
	return s.def(TabTickets, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("subject", sheetdb.KindText),
		col("body", sheetdb.KindText),
		col("requester", sheetdb.KindText),
		col("assignee", sheetdb.KindText),
		col("priority", sheetdb.KindText),
		col("status", sheetdb.KindText),
		col("attachments", sheetdb.KindJSON),
	))
}

func (s *Store) todosDef() sheetdb.TableDef {
	return s.def(TabTodos, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("text", sheetdb.KindText),
		col("owner", sheetdb.KindText),
		col("due_date", sheetdb.KindDate),
		col("done", sheetdb.KindBool),
	))
}

func (s *Store) chatMessagesDef() sheetdb.TableDef {
	return s.def(TabChatMessages, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("channel", sheetdb.KindText),
		col("author", sheetdb.KindText),
		col("body", sheetdb.KindText),
	))
}

func (s *Store) notificationsDef() sheetdb.TableDef {
	return s.def(TabNotifications, schemaWithStamps(
		col("id", sheetdb.KindNumber),
		col("recipient", sheetdb.KindText),
		col("role", sheetdb.KindText),
		col("title", sheetdb.KindText),
		col("body", sheetdb.KindText),
		col("read", sheetdb.KindBool),
	))
}

// pipelineStages is the number of fulfillment stages an order line moves
// through; each stage carries a planned and an actual timestamp.
const pipelineStages = 8

func orderColumns() []sheetdb.Column {
	columns := []sheetdb.Column{
		col("id", sheetdb.KindNumber),
		col("party_id", sheetdb.KindNumber),
		col("customer", sheetdb.KindText),
		col("address", sheetdb.KindText),
		col("phone", sheetdb.KindText),
		col("order_date", sheetdb.KindDate),
		col("item", sheetdb.KindText),
		col("quantity", sheetdb.KindNumber),
		col("unit_cost", sheetdb.KindNumber),
		col("total_cost", sheetdb.KindNumber),
		col("status", sheetdb.KindText),
		col("notes", sheetdb.KindText),
	}
	for i := 1; i <= pipelineStages; i++ {
		columns = append(columns,
			col(plannedColumn(i), sheetdb.KindDate),
			col(actualColumn(i), sheetdb.KindDate),
		)
	}
	return columns
}

func plannedColumn(stage int) string {
	return "planned_" + strconv.Itoa(stage)
}

func actualColumn(stage int) string {
	return "actual_" + strconv.Itoa(stage)
}

// orderPreserved lists the per-line columns a grouped update keeps from the
// stored row when the incoming line reuses a row id: the pipeline
// timestamps, the free-form status, the notes, and the unit cost.
func orderPreserved() []string {
	preserved := []string{"status", "notes", "unit_cost"}
	for i := 1; i <= pipelineStages; i++ {
		preserved = append(preserved, plannedColumn(i), actualColumn(i))
	}
	return preserved
}

func deriveOrderTotals(rec sheetdb.Record) {
	unit, _ := rec.Float("unit_cost")
	quantity, _ := rec.Float("quantity")
	rec["total_cost"] = unit * quantity
}

func (s *Store) ordersDef() sheetdb.TableDef {
	def := s.def(TabOrders, schemaWithStamps(orderColumns()...))
	def.GroupColumn = "party_id"
	def.Preserved = orderPreserved()
	def.Derive = deriveOrderTotals
	return def
}

// Defs returns every table definition, for bring-up at startup.
func (s *Store) Defs() []sheetdb.TableDef {
	return []sheetdb.TableDef{
		s.usersDef(),
		s.departmentsDef(),
		s.delegationsDef(),
		s.checklistsDef(),
		s.minutesDef(),
		s.ticketsDef(),
		s.todosDef(),
		s.chatMessagesDef(),
		s.notificationsDef(),
		s.ordersDef(),
	}
}
