package vision

import (
	"fmt"
	"os"
	"strings"
)

// DefaultPrompt asks the model to classify the photo, transcribe documents in
// full, and describe scenes with a hazard warning when one applies. The
// category line is parsed by ParseAnalysis.
const DefaultPrompt = `
Bạn là trợ lý hỗ trợ người khiếm thị.
Hãy phân loại ảnh thành một trong hai loại:
- [Tài liệu]: Nếu bức ảnh là tài liệu/trang giấy → OCR toàn bộ nội dung và format lại nội dung đó cho hoàn chỉnh, chỉnh chu và ngăn nắp, không tóm tắt.
- [Ngữ cảnh]: Nếu bức ảnh là cảnh vật/bối cảnh → chỉ cần miêu tả tóm tắt tổng thể.
  Nếu trong ảnh có vật thể nguy hiểm (xe đang chạy tới, hố, bậc thang, vật sắc nhọn, lửa...) hãy thêm một dòng cảnh báo bắt đầu bằng "Cảnh báo:".
Trả kết quả theo format:
Thể loại: [Tài liệu hoặc Ngữ cảnh]
Nội dung: <nội dung tương ứng>
`

// LoadPrompt reads a prompt override from disk. An empty path returns DefaultPrompt.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}
