package models

import "time"

type Review struct {
	RaterEmail string    `json:"rater_email" yaml:"rater_email"`
	Rating     int       `json:"rating" yaml:"rating"`
	Comment    string    `json:"comment" yaml:"comment"`
	Date       time.Time `json:"date" yaml:"date"`
}

type Machinery struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Category       string            `json:"category" yaml:"category"`
	OwnerEmail     string            `json:"owner_email" yaml:"owner_email"`
	OwnerName      string            `json:"owner_name" yaml:"owner_name"`
	DailyRate      int64             `json:"daily_rate" yaml:"daily_rate"`
	District       string            `json:"district" yaml:"district"`
	State          string            `json:"state" yaml:"state"`
	Specifications map[string]string `json:"specifications,omitempty" yaml:"specifications"`
	Status         MachineryStatus   `json:"status" yaml:"status"`
	Reviews        []Review          `json:"reviews,omitempty" yaml:"reviews"`
	CreatedAt      time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" yaml:"updated_at"`
}

// AverageRating returns the mean review rating, 0 when there are no reviews.
func (m *Machinery) AverageRating() float64 {
	if len(m.Reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range m.Reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(m.Reviews))
}
