package specification

import "gorm.io/gorm"

// ByStep filters rules or messages by conversation step
type ByStep struct {
	Step string
}

func (s ByStep) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("step = ?", s.Step)
}

// ByNumber filters by chat number
type ByNumber struct {
	Number string
}

func (s ByNumber) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("number = ?", s.Number)
}

// AfterID filters rows strictly newer than a message id
type AfterID struct {
	ID int64
}

func (s AfterID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id > ?", s.ID)
}

// BeforeID filters rows strictly older than a message id
type BeforeID struct {
	ID int64
}

func (s BeforeID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id < ?", s.ID)
}

// ByKind filters messages by stored kind (tipo column)
type ByKind struct {
	Kinds []string
}

func (s ByKind) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("tipo IN ?", s.Kinds)
}

// NotStatus excludes rows carrying a given status (estado column)
type NotStatus struct {
	Status string
}

func (s NotStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("estado IS NULL OR estado <> ?", s.Status)
}

// NonEmptyBody drops rows whose stored body is empty (mensaje column)
type NonEmptyBody struct{}

func (s NonEmptyBody) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("mensaje IS NOT NULL AND mensaje <> ''")
}
