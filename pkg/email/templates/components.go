package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps content in the shared transactional email shell.
// Inline styles only: most mail clients drop <style> blocks.
func Layout(appName, title string, content ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(title)+`</title></head>`+
			`<body style="margin:0;padding:0;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;color:#18181b">`+
			`<table role="presentation" width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:32px 16px">`+
			`<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px">`+
			`<tr><td style="font-size:20px;font-weight:bold;padding-bottom:24px">`+templ.EscapeString(appName)+`</td></tr><tr><td>`); err != nil {
			return err
		}
		for _, c := range content {
			if c == nil {
				continue
			}
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</td></tr></table>`+
			`<p style="font-size:12px;color:#71717a;padding-top:16px">`+
			`You are receiving this email because of activity on your `+templ.EscapeString(appName)+` account.</p>`+
			`</td></tr></table></body></html>`)
		return err
	})
}

// Greeting renders "Hi name," or a generic greeting when name is empty.
func Greeting(name string) templ.Component {
	if name == "" {
		return Paragraph("Hi,")
	}
	return Paragraph("Hi " + name + ",")
}

// Paragraph renders escaped text as a paragraph.
func Paragraph(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p style="font-size:16px;line-height:24px;margin:0 0 16px">`+
			templ.EscapeString(text)+`</p>`)
		return err
	})
}

// Button renders a call-to-action link. Unsafe URLs are replaced by templ's sanitizer.
func Button(label, href string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		url := string(templ.URL(href))
		_, err := io.WriteString(w, `<p style="margin:24px 0"><a href="`+templ.EscapeString(url)+`" `+
			`style="display:inline-block;background:#2563eb;color:#ffffff;text-decoration:none;`+
			`padding:12px 24px;border-radius:6px;font-weight:bold">`+templ.EscapeString(label)+`</a></p>`+
			`<p style="font-size:13px;color:#52525b;word-break:break-all">`+
			`If the button does not work, copy this link into your browser: `+templ.EscapeString(url)+`</p>`)
		return err
	})
}
