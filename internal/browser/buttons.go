package browser

import (
	json "github.com/json-iterator/go"
)

// Button roles the session knows how to find. Apply buttons open the form
// on posting pages; submit buttons send the finished application.
const (
	ButtonApply  = "apply"
	ButtonSubmit = "submit"
)

// applySelectors hit the common ATS apply buttons directly before any text
// scanning happens.
var applySelectors = []string{
	"a[data-qa='btn-apply']",     // lever
	"#apply_button",              // greenhouse
	"a[data-mapped='apply']",     // ashby
	"[data-automation-id='adventureButton']", // workday
	"a.postings-btn",
}

var applyTexts = []string{
	"apply for this job", "apply for this position", "apply now",
	"start application", "begin application", "apply",
}

var submitSelectors = []string{
	"#btn-submit",              // lever
	"#submit_app",              // greenhouse
	"button[data-qa='btn-submit']",
	"[data-automation-id='bottom-navigation-next-button']", // workday
	"button[type='submit']",
	"input[type='submit']",
}

var submitTexts = []string{
	"submit application", "send application", "submit", "finish",
}

// clickScript builds a script that clicks the first visible button matching
// a selector list, then falls back to scanning button text. It searches the
// top document and same-origin iframes and returns true when it clicked.
func clickScript(selectors, texts []string) string {
	selJSON, _ := json.MarshalToString(selectors)
	textJSON, _ := json.MarshalToString(texts)
	return `(() => {
  const selectors = ` + selJSON + `;
  const texts = ` + textJSON + `;

  const visible = (win, el) => {
    const style = win.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  };

  const tryDoc = (doc, win) => {
    for (const sel of selectors) {
      try {
        for (const el of doc.querySelectorAll(sel)) {
          if (visible(win, el)) { el.click(); return true; }
        }
      } catch (e) {}
    }
    const buttons = doc.querySelectorAll("button, a[role='button'], input[type='submit'], input[type='button'], a.button");
    for (const text of texts) {
      for (const el of buttons) {
        const label = ((el.innerText || el.value || '') + '').trim().toLowerCase();
        if (label === text && visible(win, el)) { el.click(); return true; }
      }
    }
    for (const text of texts) {
      for (const el of buttons) {
        const label = ((el.innerText || el.value || '') + '').trim().toLowerCase();
        if (label.includes(text) && visible(win, el)) { el.click(); return true; }
      }
    }
    return false;
  };

  if (tryDoc(document, window)) return true;
  for (const frame of document.querySelectorAll('iframe')) {
    try {
      if (frame.contentDocument && tryDoc(frame.contentDocument, frame.contentWindow)) return true;
    } catch (e) {}
  }
  return false;
})()`
}

// scriptForButton returns the click script for a named button role.
func scriptForButton(role string) string {
	if role == ButtonSubmit {
		return clickScript(submitSelectors, submitTexts)
	}
	return clickScript(applySelectors, applyTexts)
}
