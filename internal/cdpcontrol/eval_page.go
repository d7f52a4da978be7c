package cdpcontrol

// captureSettleMS bounds how long the capture script waits for
// document.readyState to reach "complete" before reading the page anyway.
const captureSettleMS = "2000"

const jsCapturePageBody = `
var deadline = Date.now() + ` + captureSettleMS + `;
while (document.readyState !== "complete" && Date.now() < deadline) {
  await new Promise(function(r){ setTimeout(r, 50); });
}
var body = document.body;
var root = document.documentElement;
return JSON.stringify({ok:true,data:{
  title: document.title || "",
  url: location.href || "",
  text: body ? (body.innerText || "") : "",
  html: root ? (root.outerHTML || "") : "",
  ts: Date.now()
}});`

func jsCapturePage() string {
	return wrapJSEvalAsync(jsCapturePageBody)
}

// CaptureExpression returns the capture script for evaluators that do not go
// through Client, such as a chromedp session driving a fresh browser.
func CaptureExpression() string {
	return jsCapturePage()
}
