package model

// Field names of the flat records exchanged with the backing store.
const (
	FieldName        = "name"
	FieldCategory    = "category"
	FieldStatus      = "status"
	FieldProgress    = "progress"
	FieldDeadline    = "deadline"
	FieldProjectID   = "project_id"
	FieldTitle       = "title"
	FieldDueDate     = "due_date"
	FieldPriority    = "priority"
	FieldCompleted   = "completed"
	FieldCompletedAt = "completed_at"
	FieldHabitID     = "habit_id"
	FieldDay         = "day"
	FieldCreatedAt   = "created_at"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	// OpDeleteChildren removes every record whose parent field matches.
	OpDeleteChildren OpKind = "delete_children"
)

// Fields is a flat field map. Values are string, int, bool, time.Time,
// *time.Time or nil (clears the field).
type Fields map[string]any

// Op is a single write against one record of one collection. ID is empty for
// creates unless the caller pre-assigns it. A delete that carries Fields only
// removes the record while those fields still hold the given values.
type Op struct {
	Kind       OpKind
	Collection Collection
	ID         string
	Fields     Fields
}

func Create(c Collection, f Fields) Op { return Op{Kind: OpCreate, Collection: c, Fields: f} }

func Update(c Collection, id string, f Fields) Op {
	return Op{Kind: OpUpdate, Collection: c, ID: id, Fields: f}
}

func Delete(c Collection, id string) Op { return Op{Kind: OpDelete, Collection: c, ID: id} }

// DeleteChild deletes child id only while it still belongs to parentID.
func DeleteChild(c Collection, id, field, parentID string) Op {
	return Op{Kind: OpDelete, Collection: c, ID: id, Fields: Fields{field: parentID}}
}

// DeleteChildren deletes every record of c whose field equals parentID.
func DeleteChildren(c Collection, field, parentID string) Op {
	return Op{Kind: OpDeleteChildren, Collection: c, Fields: Fields{field: parentID}}
}
