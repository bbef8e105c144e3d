package assistant

import (
	"fmt"
	"strings"
)

const systemInstruction = `Bạn là trợ lý y tế AI của hệ thống đặt lịch khám ClinicBook.

VAI TRÒ:
- Giải đáp thắc mắc sức khỏe cơ bản
- Gợi ý chuyên khoa và bác sĩ phù hợp với triệu chứng
- Tóm tắt lịch sử khám bệnh khi được hỏi
- Hướng dẫn đặt lịch và chuẩn bị trước khi khám

NGUYÊN TẮC:
1. Luôn nhắc: "Thông tin chỉ mang tính tham khảo, không thay thế ý kiến bác sĩ"
2. Khuyên bệnh nhân đặt lịch khám khi triệu chứng nghiêm trọng
3. Trả lời bằng tiếng Việt, ngắn gọn và dễ hiểu
4. Không đưa ra chẩn đoán chắc chắn, không kê đơn thuốc

KHI ĐƯỢC HỎI VỀ TRIỆU CHỨNG:
- Đánh giá mức độ nghiêm trọng
- Gợi ý chuyên khoa (Tim mạch, Nhi khoa, Da liễu...)
- Kết thúc bằng lời mời đặt lịch nếu cần`

// maxPromptDoctors caps the doctor list so large clinics do not crowd out
// the question.
const maxPromptDoctors = 30

// BuildPrompt renders the user turn: context sections followed by the
// question. The system instruction is sent separately.
func BuildPrompt(message string, cc *ChatContext) string {
	var b strings.Builder
	if cc != nil {
		writeContext(&b, cc)
	}
	fmt.Fprintf(&b, "=== CÂU HỎI CỦA BỆNH NHÂN ===\n%s\n\n", message)
	b.WriteString("Hãy trả lời câu hỏi trên với vai trò trợ lý y tế, dựa trên thông tin đã cung cấp.")
	return b.String()
}

func writeContext(b *strings.Builder, cc *ChatContext) {
	b.WriteString("=== THÔNG TIN BỆNH NHÂN ===\n")
	if cc.UserName != "" {
		fmt.Fprintf(b, "Tên bệnh nhân: %s\n", cc.UserName)
	}
	if cc.UserAge > 0 {
		fmt.Fprintf(b, "Tuổi: %d\n", cc.UserAge)
	}
	if cc.UserGender != "" {
		fmt.Fprintf(b, "Giới tính: %s\n", cc.UserGender)
	}

	if len(cc.Doctors) > 0 {
		b.WriteString("\n=== DANH SÁCH BÁC SĨ ===\n")
		for i, d := range cc.Doctors {
			if i == maxPromptDoctors {
				break
			}
			fmt.Fprintf(b, "- %s - Chuyên khoa: %s\n", d.FullName, d.Specialty)
			if d.Description != "" {
				fmt.Fprintf(b, "  Mô tả: %s\n", d.Description)
			}
		}
	}

	if len(cc.MedicalHistory) > 0 {
		b.WriteString("\n=== LỊCH SỬ KHÁM BỆNH ===\n")
		for _, r := range cc.MedicalHistory {
			fmt.Fprintf(b, "- %s: %s\n", r.Date, r.Diagnosis)
			if r.Treatment != "" {
				fmt.Fprintf(b, "  Điều trị: %s\n", r.Treatment)
			}
		}
	}

	if len(cc.UpcomingAppointments) > 0 {
		b.WriteString("\n=== LỊCH HẸN SẮP TỚI ===\n")
		for _, a := range cc.UpcomingAppointments {
			fmt.Fprintf(b, "- %s %s với %s (%s)\n", a.Date, a.Time, a.DoctorName, a.Specialty)
		}
	}
	b.WriteString("\n")
}
