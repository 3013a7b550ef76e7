package schema

import (
	"fmt"

	"github.com/goliatone/go-flow-designer/flow"
)

func builtins() []*Schema {
	return []*Schema{
		startSchema(),
		endSchema(),
		messageSchema(),
		buttonSchema(),
		inputSchema(),
		conditionSchema(),
		functionSchema(),
		agentSchema(),
		apiSchema(),
		formSchema(),
		tableSchema(),
		decisionTreeSchema(),
	}
}

func startSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeStart,
		Title:       "Start",
		Description: "Flow entry point",
		Fields: []Field{
			required(text("title", "Title")),
			textarea("description", "Description"),
		},
		Defaults: func() map[string]any {
			return map[string]any{"title": "Flow Start"}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{titleItem(props, "Start")}
		},
		ComputeOutputs: fixed("next"),
	}
}

func endSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeEnd,
		Title:       "End",
		Description: "Flow termination node",
		Fields: []Field{
			text("title", "Title"),
			textarea("message", "Message"),
			boolean("returnToMain", "Return to Main"),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":        "Flow End",
				"message":      "Thank you, is there anything else I can help with?",
				"returnToMain": true,
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "End"),
				{Label: "Message", Value: stringOr(props, "message", "")},
			}
		},
		ComputeInputs: previousInput,
	}
}

func messageSchema() *Schema {
	delay := number("delay", "Delay (ms)")
	delay.Min, delay.Step = num(0), num(100)
	return &Schema{
		Type:        flow.NodeTypeMessage,
		Title:       "Message",
		Description: "Send a message to the user",
		Fields: []Field{
			text("title", "Title"),
			required(textarea("message", "Message")),
			labeledSelect("messageType", "Message Type",
				Option{Label: "Text", Value: "text"},
				Option{Label: "Markdown", Value: "markdown"},
				Option{Label: "Html", Value: "html"},
			),
			delay,
			boolean("typing", "Show Typing Indicator"),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":       "Send Message",
				"message":     "Hello! How can I help you?",
				"messageType": "text",
				"delay":       float64(0),
				"typing":      true,
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Message"),
				{Label: "Preview", Value: stringOr(props, "message", "")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("next"),
	}
}

func buttonSchema() *Schema {
	timeout := number("timeout", "Timeout (sec)")
	timeout.Min = num(0)
	return &Schema{
		Type:        flow.NodeTypeButton,
		Title:       "Button",
		Description: "Multi-option button selector",
		Fields: []Field{
			text("title", "Title"),
			required(textarea("message", "Prompt Message")),
			list("buttons", "Buttons", "Button",
				map[string]any{"text": "New Button", "value": "option", "icon": "✨", "color": "#2563eb"},
				required(text("text", "Label")),
				required(text("value", "Value")),
				text("icon", "Icon"),
				text("color", "Color"),
			),
			boolean("allowMultiSelect", "Allow Multiple"),
			timeout,
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":   "Button Options",
				"message": "What do you need help with?",
				"buttons": []any{
					map[string]any{"text": "Credit", "value": "credit", "icon": "💳", "color": "#007bff"},
					map[string]any{"text": "Deposit", "value": "deposit", "icon": "💰", "color": "#28a745"},
				},
				"allowMultiSelect": false,
				"timeout":          float64(300),
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Button"),
				{Label: "Options", Value: count(props, "buttons", "option")},
			}
		},
		ComputeInputs: previousInput,
		ComputeOutputs: func(props map[string]any) []string {
			buttons := listProp(props, "buttons")
			out := make([]string, 0, len(buttons)+1)
			for _, b := range buttons {
				name, ok := firstString(b, "value", "text")
				if !ok {
					name = "option"
				}
				out = append(out, name)
			}
			return append(out, "timeout")
		},
	}
}

func inputSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeInput,
		Title:       "Input",
		Description: "Collect user input with validation",
		Fields: []Field{
			text("title", "Title"),
			required(textarea("message", "Prompt Message")),
			labeledSelect("inputType", "Input Type",
				Option{Label: "Text", Value: "text"},
				Option{Label: "Number", Value: "number"},
				Option{Label: "Email", Value: "email"},
				Option{Label: "Phone", Value: "tel"},
			),
			object("validation", "Validation",
				boolean("required", "Required"),
				number("min", "Min"),
				number("max", "Max"),
				text("pattern", "Pattern"),
			),
			text("placeholder", "Placeholder"),
			object("retry", "Retry Configuration",
				number("maxAttempts", "Max Attempts"),
				textarea("errorMessage", "Error Message"),
			),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":     "User Input",
				"message":   "Please enter the amount:",
				"inputType": "number",
				"validation": map[string]any{
					"required": true,
					"min":      float64(1000),
					"max":      float64(1000000),
					"pattern":  "^[0-9]+$",
				},
				"placeholder": "e.g. 50000",
				"retry": map[string]any{
					"maxAttempts":  float64(3),
					"errorMessage": "Enter a valid amount (1,000 - 1,000,000)",
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Input"),
				{Label: "Type", Value: stringOr(props, "inputType", "text")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("valid", "invalid", "timeout"),
	}
}

func conditionSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeCondition,
		Title:       "Condition",
		Description: "Route flow based on condition evaluation",
		Fields: []Field{
			text("title", "Title"),
			list("conditions", "Conditions", "Condition",
				map[string]any{"variable": "{{variable}}", "operator": "==", "value": "", "output": "output"},
				required(text("variable", "Variable")),
				selectField("operator", "Operator", "==", "!=", ">", ">=", "<", "<="),
				text("value", "Value"),
				required(text("output", "Output Handle")),
			),
			text("defaultOutput", "Default Output"),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title": "Condition Check",
				"conditions": []any{
					map[string]any{"variable": "{{input_amount}}", "operator": ">", "value": "100000", "output": "high_amount"},
					map[string]any{"variable": "{{input_amount}}", "operator": "<=", "value": "100000", "output": "low_amount"},
				},
				"defaultOutput": "error",
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Condition"),
				{Label: "Rules", Value: count(props, "conditions", "rule")},
			}
		},
		ComputeInputs: previousInput,
		ComputeOutputs: func(props map[string]any) []string {
			conditions := listProp(props, "conditions")
			out := make([]string, 0, len(conditions)+1)
			for i, c := range conditions {
				name, ok := firstString(c, "output")
				if !ok {
					name = fmt.Sprintf("condition_%d", i+1)
				}
				out = append(out, name)
			}
			if def, ok := stringProp(props, "defaultOutput"); ok && def != "" {
				out = append(out, def)
			}
			if len(out) == 0 {
				return []string{"default"}
			}
			return out
		},
	}
}

func functionSchema() *Schema {
	retryCount := number("retryCount", "Retry Count")
	retryCount.Min = num(0)
	return &Schema{
		Type:        flow.NodeTypeFunction,
		Title:       "Function",
		Description: "Call a reusable function block",
		Fields: []Field{
			text("title", "Title"),
			labeledSelect("functionType", "Function Type",
				Option{Label: "Calculation", Value: "calculation"},
				Option{Label: "Transformation", Value: "transformation"},
				Option{Label: "Validation", Value: "validation"},
			),
			object("function", "Function Config",
				required(text("name", "Function Name")),
				jsonField("parameters", "Parameters"),
			),
			jsonField("outputMapping", "Output Mapping"),
			object("errorHandling", "Error Handling",
				text("onError", "On Error Output"),
				retryCount,
			),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":        "Calculation Function",
				"functionType": "calculation",
				"function": map[string]any{
					"name": "calculateLoanPayment",
					"parameters": map[string]any{
						"amount": "{{input_amount}}",
						"rate":   "{{selected_rate}}",
						"term":   "{{selected_term}}",
					},
				},
				"outputMapping": map[string]any{
					"monthlyPayment": "{{result.monthlyPayment}}",
					"totalAmount":    "{{result.totalAmount}}",
				},
				"errorHandling": map[string]any{
					"onError":    "error_output",
					"retryCount": float64(2),
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			name := stringOr(mapProp(props, "function"), "name", "Unnamed")
			return []SummaryItem{
				titleItem(props, "Function"),
				{Label: "Function", Value: name},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("success", "error"),
	}
}

func agentSchema() *Schema {
	temperature := number("temperature", "Temperature")
	temperature.Min, temperature.Max, temperature.Step = num(0), num(2), num(0.1)
	maxTokens := number("maxTokens", "Max Tokens")
	maxTokens.Min = num(1)
	return &Schema{
		Type:        flow.NodeTypeAgent,
		Title:       "Agent",
		Description: "Invoke an AI agent",
		Fields: []Field{
			text("title", "Title"),
			labeledSelect("agentType", "Agent Type",
				Option{Label: "GPT", Value: "gpt"},
				Option{Label: "Internal", Value: "internal"},
			),
			object("config", "Agent Config",
				required(text("model", "Model")),
				temperature,
				maxTokens,
				textarea("systemPrompt", "System Prompt"),
				text("context", "Context Binding"),
			),
			jsonField("inputMapping", "Input Mapping"),
			object("outputParsing", "Output Parsing",
				boolean("extractIntent", "Extract Intent"),
				boolean("extractEntities", "Extract Entities"),
				text("responseField", "Response Field"),
			),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":     "AI Agent",
				"agentType": "gpt",
				"config": map[string]any{
					"model":        "gpt-4",
					"temperature":  0.7,
					"maxTokens":    float64(500),
					"systemPrompt": "You are a bank customer representative. Help the customer.",
					"context":      "{{conversation_history}}",
				},
				"inputMapping": map[string]any{
					"userMessage": "{{user_input}}",
					"context":     "{{session_context}}",
				},
				"outputParsing": map[string]any{
					"extractIntent":   true,
					"extractEntities": true,
					"responseField":   "message",
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Agent"),
				{Label: "Model", Value: stringOr(mapProp(props, "config"), "model", "model")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("success", "error", "fallback"),
	}
}

func apiSchema() *Schema {
	timeout := number("timeout", "Timeout (s)")
	timeout.Min = num(0)
	return &Schema{
		Type:        flow.NodeTypeAPI,
		Title:       "API",
		Description: "Call external API",
		Fields: []Field{
			text("title", "Title"),
			selectField("method", "HTTP Method", "GET", "POST", "PUT", "PATCH", "DELETE"),
			required(text("url", "URL")),
			{Name: "headers", Label: "Headers", Kind: KindKeyValue, KeyLabel: "Header", ValueLabel: "Value"},
			jsonField("body", "Body"),
			timeout,
			object("retry", "Retry",
				number("maxAttempts", "Max Attempts"),
				labeledSelect("backoff", "Backoff Strategy",
					Option{Label: "Constant", Value: "constant"},
					Option{Label: "Linear", Value: "linear"},
					Option{Label: "Exponential", Value: "exponential"},
				),
			),
			jsonField("responseMapping", "Response Mapping"),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":  "External Service Call",
				"method": "POST",
				"url":    "https://api.bank.com/calculate",
				"headers": map[string]any{
					"Authorization": "Bearer {{api_token}}",
					"Content-Type":  "application/json",
				},
				"body": map[string]any{
					"amount": "{{input_amount}}",
					"type":   "{{loan_type}}",
				},
				"timeout": float64(30),
				"retry": map[string]any{
					"maxAttempts": float64(3),
					"backoff":     "exponential",
				},
				"responseMapping": map[string]any{
					"result": "{{response.data.result}}",
					"error":  "{{response.error}}",
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "API"),
				{Label: "Method", Value: stringOr(props, "method", "POST")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("success", "error", "timeout"),
	}
}

func formSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeForm,
		Title:       "Form",
		Description: "Collect structured user data",
		Fields: []Field{
			text("title", "Title"),
			textarea("message", "Message"),
			list("fields", "Form Fields", "Field",
				map[string]any{"name": "field", "type": "text", "label": "New Field", "required": false},
				required(text("name", "Name")),
				labeledSelect("type", "Type",
					Option{Label: "Text", Value: "text"},
					Option{Label: "Number", Value: "number"},
					Option{Label: "Tel", Value: "tel"},
					Option{Label: "Email", Value: "email"},
				),
				text("label", "Label"),
				boolean("required", "Required"),
				text("validation", "Validation"),
				number("min", "Min"),
				number("max", "Max"),
				text("mask", "Mask"),
			),
			text("submitButton", "Submit Button"),
			text("cancelButton", "Cancel Button"),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":   "Customer Information Form",
				"message": "Please fill in your details:",
				"fields": []any{
					map[string]any{"name": "name", "type": "text", "label": "Full Name", "required": true, "validation": `^[\p{L}\s]+$`},
					map[string]any{"name": "phone", "type": "tel", "label": "Phone", "required": true, "mask": "(999) 999-9999"},
					map[string]any{"name": "amount", "type": "number", "label": "Amount", "required": true, "min": float64(1000), "max": float64(1000000)},
				},
				"submitButton": "Continue",
				"cancelButton": "Cancel",
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Form"),
				{Label: "Fields", Value: count(props, "fields", "field")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("submit", "cancel"),
	}
}

func tableSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeTable,
		Title:       "Table",
		Description: "Render tabular data",
		Fields: []Field{
			text("title", "Title"),
			textarea("message", "Message"),
			text("data", "Data Binding"),
			list("columns", "Columns", "Column",
				map[string]any{"key": "column", "title": "Heading", "format": "text"},
				required(text("key", "Key")),
				required(text("title", "Title")),
				labeledSelect("format", "Format",
					Option{Label: "Text", Value: "text"},
					Option{Label: "Currency", Value: "currency"},
					Option{Label: "Percentage", Value: "percentage"},
				),
			),
			list("actions", "Actions", "Action",
				map[string]any{"text": "Select", "value": "select", "style": "primary"},
				text("text", "Label"),
				text("value", "Value"),
				text("style", "Style"),
			),
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title":   "Interest Rates",
				"message": "Our current interest rates:",
				"data":    "{{rate_data}}",
				"columns": []any{
					map[string]any{"key": "term", "title": "Term", "format": "text"},
					map[string]any{"key": "rate", "title": "Interest Rate", "format": "percentage"},
					map[string]any{"key": "minAmount", "title": "Min. Amount", "format": "currency"},
				},
				"actions": []any{
					map[string]any{"text": "Select", "value": "select", "style": "primary"},
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Table"),
				{Label: "Columns", Value: count(props, "columns", "column")},
			}
		},
		ComputeInputs:  previousInput,
		ComputeOutputs: fixed("select", "next"),
	}
}

func decisionTreeSchema() *Schema {
	return &Schema{
		Type:        flow.NodeTypeDecisionTree,
		Title:       "Decision Tree",
		Description: "Hierarchical decision structure",
		Fields: []Field{
			text("title", "Title"),
			{Name: "tree", Label: "Tree Definition", Kind: KindDecisionTree},
		},
		Defaults: func() map[string]any {
			return map[string]any{
				"title": "Decision Tree",
				"tree": map[string]any{
					"question": "Which product category do you prefer?",
					"options": []any{
						map[string]any{
							"text":  "Credit",
							"value": "credit",
							"children": map[string]any{
								"question": "Which credit type?",
								"options": []any{
									map[string]any{"text": "Personal", "value": "personal", "output": "personal_credit"},
									map[string]any{"text": "Vehicle", "value": "vehicle", "output": "vehicle_credit"},
								},
							},
						},
						map[string]any{"text": "Deposit", "value": "deposit", "output": "deposit_flow"},
					},
				},
			}
		},
		Summarize: func(props map[string]any) []SummaryItem {
			return []SummaryItem{
				titleItem(props, "Decision Tree"),
				{Label: "Outcomes", Value: fmt.Sprintf("%d", len(TreeOutputs(mapProp(props, "tree"))))},
			}
		},
		ComputeInputs: previousInput,
		ComputeOutputs: func(props map[string]any) []string {
			outs := TreeOutputs(mapProp(props, "tree"))
			if len(outs) == 0 {
				return []string{"default"}
			}
			return outs
		},
	}
}

// TreeOutputs lists the distinct leaf outputs of a decision tree in
// depth-first order. A leaf is an option without children; its port is the
// option's output, or its value when no output is set.
func TreeOutputs(tree map[string]any) []string {
	seen := map[string]struct{}{}
	out := []string{}
	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		for _, opt := range listProp(node, "options") {
			m, ok := opt.(map[string]any)
			if !ok {
				continue
			}
			if child := mapProp(m, "children"); child != nil {
				walk(child)
				continue
			}
			name, ok := firstString(m, "output", "value")
			if !ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	if tree != nil {
		walk(tree)
	}
	return out
}
