package threedsecure

import "github.com/sumup/threedsecure/cardinal"

// ButtonType identifies a challenge screen button.
type ButtonType string

const (
	ButtonVerify   ButtonType = "VERIFY"
	ButtonContinue ButtonType = "CONTINUE"
	ButtonNext     ButtonType = "NEXT"
	ButtonCancel   ButtonType = "CANCEL"
	ButtonResend   ButtonType = "RESEND"
)

type (
	ToolbarCustomization = cardinal.ToolbarCustomization
	LabelCustomization   = cardinal.LabelCustomization
	TextBoxCustomization = cardinal.TextBoxCustomization
	ButtonCustomization  = cardinal.ButtonCustomization
)

// V2UICustomization styles the native challenge screens.
type V2UICustomization struct {
	Toolbar *ToolbarCustomization
	Label   *LabelCustomization
	TextBox *TextBoxCustomization
	Buttons map[ButtonType]ButtonCustomization
}

func (c *V2UICustomization) toCardinal() *cardinal.UICustomization {
	if c == nil {
		return nil
	}
	out := &cardinal.UICustomization{
		Toolbar: c.Toolbar,
		Label:   c.Label,
		TextBox: c.TextBox,
	}
	if len(c.Buttons) > 0 {
		out.Buttons = make(map[string]ButtonCustomization, len(c.Buttons))
		for typ, b := range c.Buttons {
			out.Buttons[string(typ)] = b
		}
	}
	return out
}
