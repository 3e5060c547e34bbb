package entity

// Course is managed by the curriculum service. Messaging uses only the
// ownership and enrollment fields.
type Course struct {
	ID        string   `json:"id" firestore:"id" bson:"_id"`
	Title     string   `json:"title" firestore:"title" bson:"title"`
	TeacherID string   `json:"teacherId" firestore:"teacherId" bson:"teacherId"`
	Students  []string `json:"students" firestore:"students" bson:"students"`
}

func (c *Course) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s == studentID {
			return true
		}
	}
	return false
}
