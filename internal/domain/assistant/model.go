package assistant

import "time"

// ChatContext is the optional patient background sent along with a question.
// Field names follow the JSON the web client already sends.
type ChatContext struct {
	UserName             string                `json:"userName,omitempty"`
	UserAge              int                   `json:"userAge,omitempty"`
	UserGender           string                `json:"userGender,omitempty"`
	Doctors              []DoctorInfo          `json:"doctors,omitempty"`
	MedicalHistory       []HistoryEntry        `json:"medicalHistory,omitempty"`
	UpcomingAppointments []UpcomingAppointment `json:"upcomingAppointments,omitempty"`
}

type DoctorInfo struct {
	FullName    string `json:"full_name"`
	Specialty   string `json:"specialty"`
	Description string `json:"description,omitempty"`
}

type HistoryEntry struct {
	Date      string `json:"date"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment,omitempty"`
}

type UpcomingAppointment struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	DoctorName string `json:"doctorName"`
	Specialty  string `json:"specialty"`
}

type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context,omitempty"`
}

type ChatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type Health struct {
	Status           string    `json:"status"`
	Service          string    `json:"service"`
	Model            string    `json:"model"`
	APIKeyConfigured bool      `json:"apiKeyConfigured"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}
