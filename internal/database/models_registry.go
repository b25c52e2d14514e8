package database

import "mentorlink/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.AlumniProfile{},
		&models.StudentProfile{},
		&models.VerificationRequest{},
		&models.MentorshipRequest{},
		&models.Message{},
		&models.MentorshipReview{},
	}
}

// PersistentTables returns the table names of PersistentModels in the same order.
func PersistentTables() []string {
	var out []string
	for _, m := range PersistentModels() {
		if t, ok := m.(interface{ TableName() string }); ok {
			out = append(out, t.TableName())
		}
	}
	return out
}
