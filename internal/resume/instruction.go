package resume

import (
	"fmt"
	"strings"

	"portfolio-chat/internal/types"
)

const instructionTemplate = `You are an AI assistant with access to %s's resume:

%s

Use %s's resume to answer questions accurately.
If asked about information not in the resume, clearly state that the information is not available in your current context.

RESPONSE GENERATION INSTRUCTION:
- Use proper line breaks
- Do not include number headings (e.g.: 1. xxxx. 2. yyyy ... etc)
`

// BuildSystemInstruction 生成放在对话最前面的系统消息
func BuildSystemInstruction(doc *types.ResumeDocument) (types.Turn, error) {
	body, err := doc.MarshalIndent()
	if err != nil {
		return types.Turn{}, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}

	owner := strings.TrimSpace(doc.FirstName())
	if owner == "" {
		owner = "the site owner"
	}

	return types.Turn{
		Role:    types.RoleSystem,
		Content: fmt.Sprintf(instructionTemplate, owner, body, owner),
	}, nil
}
