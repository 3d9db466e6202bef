package models

// Meta is a small key/value table holding the persisted schema and seed
// versions the migrator compares against.
type Meta struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
