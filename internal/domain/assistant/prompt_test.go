package assistant

import (
	"fmt"
	"strings"
	"testing"
)

func TestBuildPrompt_NoContext(t *testing.T) {
	p := BuildPrompt("Tôi bị đau đầu", nil)
	if strings.Contains(p, "THÔNG TIN BỆNH NHÂN") {
		t.Error("expected no context section")
	}
	if !strings.Contains(p, "=== CÂU HỎI CỦA BỆNH NHÂN ===\nTôi bị đau đầu\n") {
		t.Errorf("expected question section, got %q", p)
	}
}

func TestBuildPrompt_SectionsInOrder(t *testing.T) {
	cc := &ChatContext{
		UserName:   "Le Binh",
		UserAge:    34,
		UserGender: "Nam",
		Doctors:    []DoctorInfo{{FullName: "Dr. An", Specialty: "Tim mạch", Description: "20 năm kinh nghiệm"}},
		MedicalHistory: []HistoryEntry{
			{Date: "2024-03-01", Diagnosis: "Viêm họng", Treatment: "Kháng sinh"},
		},
		UpcomingAppointments: []UpcomingAppointment{
			{Date: "2024-06-01", Time: "09:00:00", DoctorName: "Dr. An", Specialty: "Tim mạch"},
		},
	}
	p := BuildPrompt("Tôi nên khám khoa nào?", cc)

	order := []string{
		"Tên bệnh nhân: Le Binh",
		"Tuổi: 34",
		"Giới tính: Nam",
		"- Dr. An - Chuyên khoa: Tim mạch",
		"  Mô tả: 20 năm kinh nghiệm",
		"- 2024-03-01: Viêm họng",
		"  Điều trị: Kháng sinh",
		"- 2024-06-01 09:00:00 với Dr. An (Tim mạch)",
		"Tôi nên khám khoa nào?",
	}
	last := -1
	for _, want := range order {
		i := strings.Index(p, want)
		if i < 0 {
			t.Fatalf("missing %q in prompt", want)
		}
		if i < last {
			t.Errorf("%q out of order", want)
		}
		last = i
	}
}

func TestBuildPrompt_SkipsEmptyFields(t *testing.T) {
	p := BuildPrompt("hi", &ChatContext{UserName: "Chi"})
	for _, unwanted := range []string{"Tuổi:", "Giới tính:", "DANH SÁCH BÁC SĨ", "LỊCH SỬ KHÁM BỆNH", "LỊCH HẸN SẮP TỚI"} {
		if strings.Contains(p, unwanted) {
			t.Errorf("expected %q to be omitted", unwanted)
		}
	}
}

func TestBuildPrompt_CapsDoctors(t *testing.T) {
	cc := &ChatContext{}
	for i := 0; i < maxPromptDoctors+10; i++ {
		cc.Doctors = append(cc.Doctors, DoctorInfo{FullName: fmt.Sprintf("Doctor %d", i), Specialty: "Nhi khoa"})
	}
	p := BuildPrompt("hi", cc)
	if n := strings.Count(p, "Chuyên khoa: Nhi khoa"); n != maxPromptDoctors {
		t.Errorf("expected %d doctors, got %d", maxPromptDoctors, n)
	}
}
