package http

import (
	"net/http"
)

// ServeDashboardPage serves the single embedded dashboard page. The page is
// static; all data comes from the JSON API.
func ServeDashboardPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(dashboardHTML))
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>CAGED Pulse</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1b1f24; }
  h1 { font-size: 1.4rem; }
  .row { display: flex; gap: 2rem; flex-wrap: wrap; }
  .card { border: 1px solid #d7dce1; border-radius: 6px; padding: 1rem; margin: 0.75rem 0; min-width: 20rem; }
  table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
  th, td { text-align: left; padding: 0.3rem 0.6rem; border-bottom: 1px solid #e4e8ec; }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .muted { color: #6a737d; font-size: 0.8rem; }
  .gap-neg { color: #b03030; }
  .gap-pos { color: #227744; }
  select { padding: 0.2rem; margin-right: 0.5rem; }
</style>
</head>
<body>
<h1>CAGED Pulse — admissões e salários</h1>
<p class="muted" id="coverage">carregando…</p>

<div class="card">
  <label>Dimensão <select id="dimension"></select></label>
  <label>Categoria <select id="category"></select></label>
</div>

<div class="row">
  <div class="card">
    <h2>Série e projeção salarial</h2>
    <div id="projection"></div>
  </div>
  <div class="card">
    <h2>Diferenças salariais (regressão)</h2>
    <div id="regression"></div>
  </div>
</div>

<div class="card">
  <h2>Agregados mensais</h2>
  <div id="aggregates"></div>
</div>

<script>
const fmtBRL = new Intl.NumberFormat("pt-BR", {style: "currency", currency: "BRL"});
const fmtPct = v => (100 * v).toFixed(1) + "%";
let dims = [];

async function getJSON(url) {
  const resp = await fetch(url);
  if (!resp.ok) throw new Error((await resp.json()).detail || resp.statusText);
  return resp.json();
}

function fillCategories() {
  const dim = document.getElementById("dimension").value;
  const sel = document.getElementById("category");
  sel.innerHTML = "";
  const d = dims.find(x => x.dimension === dim);
  for (const c of d.categories) {
    const opt = document.createElement("option");
    opt.value = c.code;
    opt.textContent = c.name;
    sel.appendChild(opt);
  }
}

function renderTable(el, headers, rows) {
  const cells = rows.map(r => "<tr>" + r.join("") + "</tr>").join("");
  el.innerHTML = "<table><tr>" + headers.map(h => "<th>" + h + "</th>").join("") +
    "</tr>" + cells + "</table>";
}

async function loadProjection() {
  const dim = document.getElementById("dimension").value;
  const cat = document.getElementById("category").value;
  const el = document.getElementById("projection");
  try {
    const data = await getJSON("/api/projections/" + dim + "/" + cat);
    const p = data.projection;
    if (p.status !== "ok") {
      el.innerHTML = '<p class="muted">sem projeção: ' + p.status + "</p>";
      return;
    }
    const tail = p.points.slice(-18);
    renderTable(el, ["mês", "salário médio", "intervalo"], tail.map(pt => [
      "<td>" + pt.period.year + "-" + String(pt.period.month).padStart(2, "0") +
        (pt.forecast ? " *" : "") + "</td>",
      '<td class="num">' + fmtBRL.format(pt.value) + "</td>",
      '<td class="num">' + (pt.forecast
        ? fmtBRL.format(pt.low) + " – " + fmtBRL.format(pt.high) : "") + "</td>",
    ]));
    el.innerHTML += '<p class="muted">* projetado (' +
      p.order.p + "," + p.order.d + "," + p.order.q + ")(" +
      p.order.sp + "," + p.order.sd + "," + p.order.sq + ")12</p>";
  } catch (err) {
    el.innerHTML = '<p class="muted">' + err.message + "</p>";
  }
}

async function loadRegression() {
  const dim = document.getElementById("dimension").value;
  const el = document.getElementById("regression");
  try {
    const data = await getJSON("/api/regressions");
    const reg = data.regressions.find(x => x.dimension === dim);
    if (!reg || reg.status !== "ok") {
      el.innerHTML = '<p class="muted">sem regressão: ' + (reg ? reg.status : "ausente") + "</p>";
      return;
    }
    const terms = reg.terms.filter(t => t.name.startsWith(dim + "_"));
    renderTable(el, ["categoria", "diferença", "IC 95%"], terms.map(t => {
      const cls = t.estimate < 0 ? "gap-neg" : "gap-pos";
      return [
        "<td>" + t.name.slice(dim.length + 1) + "</td>",
        '<td class="num ' + cls + '">' + fmtPct(t.estimate) + "</td>",
        '<td class="num">' + fmtPct(t.ci_low) + " – " + fmtPct(t.ci_high) + "</td>",
      ];
    }));
    el.innerHTML += '<p class="muted">vs. categoria ' + reg.baseline +
      ", R² " + reg.r_squared.toFixed(3) + ", n=" + reg.n + "</p>";
  } catch (err) {
    el.innerHTML = '<p class="muted">' + err.message + "</p>";
  }
}

async function loadAggregates() {
  const dim = document.getElementById("dimension").value;
  const el = document.getElementById("aggregates");
  try {
    const data = await getJSON("/api/aggregates?dimension=" + dim);
    const rows = data.aggregates.slice(-60);
    renderTable(el, ["mês", "categoria", "admissões", "salário médio"], rows.map(a => [
      "<td>" + a.period.year + "-" + String(a.period.month).padStart(2, "0") + "</td>",
      "<td>" + a.category_name + "</td>",
      '<td class="num">' + a.admissions.toLocaleString("pt-BR") + "</td>",
      '<td class="num">' + (a.mean_wage != null ? fmtBRL.format(a.mean_wage) : "—") + "</td>",
    ]));
  } catch (err) {
    el.innerHTML = '<p class="muted">' + err.message + "</p>";
  }
}

function refresh() {
  loadProjection();
  loadRegression();
  loadAggregates();
}

async function init() {
  try {
    const range = await getJSON("/api/periods");
    document.getElementById("coverage").textContent =
      "cobertura: " + range.from.year + "-" + String(range.from.month).padStart(2, "0") +
      " a " + range.to.year + "-" + String(range.to.month).padStart(2, "0");
  } catch (err) {
    document.getElementById("coverage").textContent = err.message;
  }
  dims = (await getJSON("/api/dimensions")).dimensions;
  const sel = document.getElementById("dimension");
  for (const d of dims) {
    const opt = document.createElement("option");
    opt.value = d.dimension;
    opt.textContent = d.dimension;
    sel.appendChild(opt);
  }
  sel.onchange = () => { fillCategories(); refresh(); };
  document.getElementById("category").onchange = refresh;
  fillCategories();
  refresh();
}
init();
</script>
</body>
</html>
`
