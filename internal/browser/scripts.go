package browser

// Scripts are formatted with JSON-encoded arguments, never with raw strings.

const existsJS = `document.querySelector(%s) !== null`

const navigateJS = `(location.href = %s, true)`

const centerJS = `(function (sel) {
  var el = document.querySelector(sel);
  if (!el) throw new Error("no element for " + sel);
  var r = el.getBoundingClientRect();
  return { x: r.left + r.width / 2, y: r.top + r.height / 2 };
})(%s)`

const dataTransferJS = `function (items) {
  var dt = new DataTransfer();
  items.forEach(function (it) { try { dt.setData(it.type, it.data); } catch (e) {} });
  return dt;
}`

const pasteJS = `(function (scope, sel, items, makeDT) {
  var dt = makeDT(items);
  var ev;
  try {
    ev = new ClipboardEvent("paste", { clipboardData: dt, bubbles: true, cancelable: true });
  } catch (e) {
    ev = new Event("paste", { bubbles: true, cancelable: true });
  }
  if (!ev.clipboardData) {
    try { Object.defineProperty(ev, "clipboardData", { value: dt }); } catch (e) {}
  }
  var target;
  if (scope === "window") target = window;
  else if (scope === "document") target = document;
  else target = (sel && document.querySelector(sel)) || document.body;
  return target.dispatchEvent(ev);
})(%s, %s, %s, ` + dataTransferJS + `)`

const dragJS = `(function (sel, type, x, y, items, makeDT) {
  var target = document.querySelector(sel);
  if (!target) throw new Error("no element for " + sel);
  var dt = makeDT(items);
  var ev = new DragEvent(type, { clientX: x, clientY: y, bubbles: true, cancelable: true, dataTransfer: dt });
  if (!ev.dataTransfer) {
    try { Object.defineProperty(ev, "dataTransfer", { value: dt }); } catch (e) {}
  }
  return target.dispatchEvent(ev);
})(%s, %s, %s, %s, %s, ` + dataTransferJS + `)`

const contextJS = `(function () {
  var titles = [];
  var seen = {};
  document.querySelectorAll('[data-test-id="canvas"] [data-test-id*="node"], [class*="canvas"] [class*="node"], svg text').forEach(function (el) {
    var t = (el.innerText || el.textContent || "").trim();
    if (t && t.length < 120 && !seen[t]) { seen[t] = true; titles.push(t); }
  });
  var errors = [];
  var seenErr = {};
  document.querySelectorAll('[class*="error"], [data-test-id*="error"], .el-notification__content, .n8n-notification').forEach(function (el) {
    var t = (el.innerText || el.textContent || "").trim();
    if (t && /error|fehler|failed|exception/i.test(t) && !seenErr[t]) { seenErr[t] = true; errors.push(t); }
  });
  return { url: location.href, nodes: titles.slice(0, 50), errors: errors.slice(-5) };
})()`
