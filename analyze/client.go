package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	e "github.com/fansqz/gdber/error"
	"github.com/fansqz/gdber/protocol"
)

// AnalysisRequest 崩溃分析请求，字段与分析服务的接口一致
type AnalysisRequest struct {
	StackTrace   []protocol.StackFrame `json:"stack_trace"`
	ExceptionMsg string                `json:"exception_msg"`
	RecentLogs   string                `json:"recent_logs"`
	ProjectRoot  string                `json:"project_root,omitempty"`
	CurrentFile  string                `json:"current_file,omitempty"`
}

// AnalysisResult 崩溃分析结果
type AnalysisResult struct {
	Explanation  string   `json:"explanation"`
	SuggestedFix string   `json:"suggested_fix"`
	RelatedCode  []string `json:"related_code,omitempty"`
}

// Client 崩溃分析服务的客户端
// 分析服务在本地cpu上做推理，响应会很慢，超时要放得很宽。
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled 是否配置了分析服务
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Analyze 请求分析服务解释一次崩溃
func (c *Client) Analyze(ctx context.Context, request AnalysisRequest) (*AnalysisResult, error) {
	if !c.Enabled() {
		return nil, e.ErrAnalyzeNotConfigure
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze_crash", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze service respond %d", response.StatusCode)
	}
	var result AnalysisResult
	if err = json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BuildRequest 从会话现场组装分析请求
func BuildRequest(stack []protocol.StackFrame, fault string, logs []protocol.Message, currentFile string) AnalysisRequest {
	texts := make([]string, 0, len(logs))
	for _, message := range logs {
		if payload, ok := message.Payload.(protocol.LogEventPayload); ok {
			texts = append(texts, payload.Text)
		}
	}
	return AnalysisRequest{
		StackTrace:   stack,
		ExceptionMsg: fault,
		RecentLogs:   strings.Join(texts, "\n"),
		CurrentFile:  currentFile,
	}
}
