package extract

// RawControl is one form control as harvested from the live page, before
// any semantic classification.
type RawControl struct {
	Selector    string   `json:"selector"`
	FrameID     string   `json:"frameId,omitempty"`
	Tag         string   `json:"tag"`
	InputType   string   `json:"inputType,omitempty"`
	Name        string   `json:"name,omitempty"`
	ElementID   string   `json:"elementId,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	AriaLabel   string   `json:"ariaLabel,omitempty"`
	LabelText   string   `json:"labelText,omitempty"`
	NearbyText  string   `json:"nearbyText,omitempty"`
	Options     []string `json:"options,omitempty"`
	Required    bool     `json:"required"`
	Visible     bool     `json:"visible"`
}

// HarvestScript walks the form controls of the top document and every
// same-origin iframe, returning a JSON array of RawControl records. It
// builds a stable CSS selector per control, preferring id, then name, then
// a positional path. Label text is looked up through <label for>, wrapping
// labels, aria attributes, and the nearest preceding text block. Radio
// inputs sharing a name collapse into one record: its options are the
// per-input labels and its label is the fieldset legend or radiogroup
// aria-label.
const HarvestScript = `(() => {
  const controls = [];
  const cssEscape = (s) => (window.CSS && CSS.escape) ? CSS.escape(s) : s.replace(/([^a-zA-Z0-9_-])/g, '\\$1');

  const selectorFor = (doc, el) => {
    if (el.id) return '#' + cssEscape(el.id);
    if (el.name) {
      const tag = el.tagName.toLowerCase();
      const sel = tag + '[name="' + el.name.replace(/"/g, '\\"') + '"]';
      try { if (doc.querySelectorAll(sel).length === 1) return sel; } catch (e) {}
    }
    const path = [];
    let node = el;
    while (node && node.nodeType === 1 && node !== doc.body) {
      let idx = 1, sib = node;
      while ((sib = sib.previousElementSibling)) {
        if (sib.tagName === node.tagName) idx++;
      }
      path.unshift(node.tagName.toLowerCase() + ':nth-of-type(' + idx + ')');
      node = node.parentElement;
    }
    return path.join(' > ');
  };

  const explicitLabel = (doc, el) => {
    if (el.id) {
      const lab = doc.querySelector('label[for="' + cssEscape(el.id) + '"]');
      if (lab) return lab.textContent.trim();
    }
    const wrap = el.closest('label');
    if (wrap) return wrap.textContent.trim();
    return '';
  };

  const nearbyLabel = (el) => {
    let node = el;
    for (let depth = 0; depth < 3 && node; depth++) {
      let sib = node.previousElementSibling;
      while (sib) {
        const text = (sib.textContent || '').trim();
        if (text && text.length < 200) return text;
        sib = sib.previousElementSibling;
      }
      node = node.parentElement;
    }
    return '';
  };

  const visible = (win, el) => {
    const style = win.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 || rect.height > 0 || el.type === 'file';
  };

  const skipTypes = new Set(['hidden', 'submit', 'button', 'image', 'reset']);

  const groupLabel = (doc, el) => {
    const fs = el.closest('fieldset');
    if (fs) {
      const leg = fs.querySelector('legend');
      if (leg) return leg.textContent.trim();
    }
    const rg = el.closest('[role="radiogroup"]');
    if (rg && rg.getAttribute('aria-label')) return rg.getAttribute('aria-label').trim();
    return '';
  };

  const harvestDoc = (doc, win, frameId) => {
    const radioGroups = new Map();
    doc.querySelectorAll('input, textarea, select').forEach((el) => {
      const type = (el.type || '').toLowerCase();
      if (el.tagName === 'INPUT' && skipTypes.has(type)) return;
      if (el.tagName === 'INPUT' && type === 'radio') {
        // Radios are a single question; collect the group now, emit once.
        const key = el.name || selectorFor(doc, el);
        let group = radioGroups.get(key);
        if (!group) {
          group = { first: el, labels: [] };
          radioGroups.set(key, group);
        }
        const lab = explicitLabel(doc, el) || el.value || '';
        if (lab) group.labels.push(lab);
        return;
      }
      const options = [];
      if (el.tagName === 'SELECT') {
        for (const opt of el.options) {
          const text = (opt.textContent || '').trim();
          if (text) options.push(text);
        }
      }
      controls.push({
        selector: selectorFor(doc, el),
        frameId: frameId,
        tag: el.tagName.toLowerCase(),
        inputType: type,
        name: el.name || '',
        elementId: el.id || '',
        placeholder: el.placeholder || '',
        ariaLabel: el.getAttribute('aria-label') || '',
        labelText: explicitLabel(doc, el),
        nearbyText: nearbyLabel(el),
        options: options,
        required: el.required === true || el.getAttribute('aria-required') === 'true',
        visible: visible(win, el)
      });
    });
    for (const group of radioGroups.values()) {
      const el = group.first;
      controls.push({
        selector: selectorFor(doc, el),
        frameId: frameId,
        tag: 'input',
        inputType: 'radio',
        name: el.name || '',
        elementId: el.id || '',
        placeholder: '',
        ariaLabel: el.getAttribute('aria-label') || '',
        labelText: groupLabel(doc, el),
        nearbyText: nearbyLabel(el),
        options: group.labels,
        required: el.required === true || el.getAttribute('aria-required') === 'true',
        visible: visible(win, el)
      });
    }
  };

  harvestDoc(document, window, '');
  document.querySelectorAll('iframe').forEach((frame, i) => {
    try {
      const doc = frame.contentDocument;
      if (!doc) return; // cross-origin
      const id = frame.id ? '#' + cssEscape(frame.id) : 'iframe:nth-of-type(' + (i + 1) + ')';
      harvestDoc(doc, frame.contentWindow, id);
    } catch (e) {}
  });
  return controls;
})()`

// ChallengeProbeScript reports whether the page is showing a blocking
// challenge such as a CAPTCHA widget or a login wall instead of the form.
const ChallengeProbeScript = `(() => {
  const markers = [
    'iframe[src*="recaptcha"]', 'iframe[src*="hcaptcha"]',
    'div.g-recaptcha', 'div.h-captcha', '#cf-challenge-running',
    'iframe[src*="challenges.cloudflare.com"]'
  ];
  for (const sel of markers) {
    try { if (document.querySelector(sel)) return true; } catch (e) {}
  }
  const text = (document.body && document.body.innerText || '').toLowerCase();
  return text.includes('verify you are human') || text.includes('sign in to continue');
})()`
