package seed

// File is the top level of a seed document.
type File struct {
	Workshops []Workshop `yaml:"workshops"`
}

// Workshop is one seeded workshop. IDs are kept verbatim so repeated seeding
// updates the same rows.
type Workshop struct {
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	MentorID    string       `yaml:"mentor_id"`
	MentorEmail string       `yaml:"mentor_email"`
	Schedule    Schedule     `yaml:"schedule"`
	Enrollments []Enrollment `yaml:"enrollments"`
}

// Schedule mirrors the API schedule payload.
type Schedule struct {
	Type         string    `yaml:"type"`
	StartDate    string    `yaml:"start_date"`
	NumberOfDays int       `yaml:"number_of_days"`
	Pattern      []Slot    `yaml:"pattern"`
	Sessions     []Session `yaml:"sessions"`
}

type Slot struct {
	Weekday string `yaml:"weekday"`
	Time    string `yaml:"time"`
}

type Session struct {
	Date string `yaml:"date"`
	Time string `yaml:"time"`
}

// Enrollment is a student enrolled in the surrounding workshop. Payment
// defaults to pending.
type Enrollment struct {
	Email   string `yaml:"email"`
	Payment string `yaml:"payment"`
}
