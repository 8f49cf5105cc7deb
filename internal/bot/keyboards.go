package bot

// Callback data values. Deliberately constant: putting a chat ID in
// callback data would hand the recipient's identity to the sender's
// client, so the actual target is always looked up server-side.
const (
	CallbackCancel = "cancel"
	CallbackAgain  = "again"
)

func CancelKeyboard() any {
	return map[string]any{
		"inline_keyboard": [][]map[string]any{
			{{"text": "✖️ Cancel", "callback_data": CallbackCancel}},
		},
	}
}

func AgainKeyboard() any {
	return map[string]any{
		"inline_keyboard": [][]map[string]any{
			{{"text": "📝 Send again", "callback_data": CallbackAgain}},
		},
	}
}
