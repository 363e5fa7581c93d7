package student

import "strings"

// Wire is the backend's JSON representation of a student.
type Wire struct {
	NationalID   string  `json:"national_id"`
	ArabicName   string  `json:"arabic_name"`
	SeatNumber   string  `json:"seat_number"`
	Code         string  `json:"code"`
	EnglishName  *string `json:"english_name"`
	Photo        *string `json:"photo"`
	CanEditAgain *bool   `json:"can_edit_again,omitempty"`
}

// FromWire maps the backend shape onto a Record.
func FromWire(w Wire) Record {
	rec := Record{
		NationalID:   w.NationalID,
		ArabicName:   w.ArabicName,
		SeatNumber:   w.SeatNumber,
		StudentCode:  w.Code,
		CanEditAgain: w.CanEditAgain,
	}
	if w.EnglishName != nil {
		rec.EnglishName = SplitName(*w.EnglishName)
	}
	if w.Photo != nil {
		rec.PhotoURL = *w.Photo
	}
	return rec
}

// ToWire maps a Record back onto the backend shape. Absent values become null.
func ToWire(r Record) Wire {
	w := Wire{
		NationalID:   r.NationalID,
		ArabicName:   r.ArabicName,
		SeatNumber:   r.SeatNumber,
		Code:         r.StudentCode,
		CanEditAgain: r.CanEditAgain,
	}
	if len(r.EnglishName) > 0 {
		name := strings.Join(r.EnglishName, " ")
		w.EnglishName = &name
	}
	if r.PhotoURL != "" {
		photo := r.PhotoURL
		w.Photo = &photo
	}
	return w
}

// Cached is the client-side shape kept in the session cache.
type Cached struct {
	NationalID        string  `json:"nationalId"`
	ArabicName        string  `json:"arabicName"`
	ExamSeatNumber    string  `json:"examSeatNumber"`
	StudentCode       string  `json:"studentCode"`
	EnglishFirstName  string  `json:"englishFirstName"`
	EnglishSecondName string  `json:"englishSecondName"`
	EnglishThirdName  string  `json:"englishThirdName"`
	ProfilePicture    *string `json:"profilePicture"`
	CanEditAgain      *bool   `json:"canEditAgain,omitempty"`
}

// ToCached converts a Record into its cached shape. Name parts beyond the third
// are folded into the third field so no part is lost.
func ToCached(r Record) Cached {
	c := Cached{
		NationalID:        r.NationalID,
		ArabicName:        r.ArabicName,
		ExamSeatNumber:    r.SeatNumber,
		StudentCode:       r.StudentCode,
		EnglishFirstName:  r.NamePart(0),
		EnglishSecondName: r.NamePart(1),
		CanEditAgain:      r.CanEditAgain,
	}
	if len(r.EnglishName) > 2 {
		c.EnglishThirdName = strings.Join(r.EnglishName[2:], " ")
	}
	if r.PhotoURL != "" {
		photo := r.PhotoURL
		c.ProfilePicture = &photo
	}
	return c
}

// FromCached converts the cached shape back into a Record.
func FromCached(c Cached) Record {
	rec := Record{
		NationalID:   c.NationalID,
		ArabicName:   c.ArabicName,
		SeatNumber:   c.ExamSeatNumber,
		StudentCode:  c.StudentCode,
		CanEditAgain: c.CanEditAgain,
	}
	for _, p := range []string{c.EnglishFirstName, c.EnglishSecondName, c.EnglishThirdName} {
		rec.EnglishName = append(rec.EnglishName, SplitName(p)...)
	}
	if c.ProfilePicture != nil {
		rec.PhotoURL = *c.ProfilePicture
	}
	return rec
}
