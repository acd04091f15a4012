package widget

import "html/template"

var pageTemplate = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Options.Name}} - {{.Options.Description}}</title>
<script src="https://checkout.razorpay.com/v1/checkout.js"></script>
</head>
<body>
<p id="status">Opening payment window...</p>
<script>
const options = {{.Options}};
const base = {{.Base}};
function post(path, body) {
  return fetch(base + path, {
    method: "POST",
    headers: {"Content-Type": "application/x-www-form-urlencoded"},
    body: new URLSearchParams(body || {})
  });
}
options.handler = function (resp) {
  post("/success", resp).then(function () {
    document.getElementById("status").textContent = "Payment received. You can close this window.";
  });
};
options.modal = {
  ondismiss: function () {
    post("/dismiss").then(function () {
      document.getElementById("status").textContent = "Payment cancelled.";
    });
  }
};
new Razorpay(options).open();
</script>
</body>
</html>
`))

type pageData struct {
	Options Options
	Base    string
}
