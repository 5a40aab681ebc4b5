package constants

const (
	// ServiceName 服务名，用于日志和链路追踪
	ServiceName = "portfolio-chat"
	// Version 服务版本
	Version = "1.0.0"

	// DataStreamHeader 客户端据此识别数据流协议
	DataStreamHeader = "X-Vercel-AI-Data-Stream"
	// RequestIDHeader 请求ID响应头
	RequestIDHeader = "X-Request-ID"
)
