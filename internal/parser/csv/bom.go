package csv

// utf8BOM is stripped from the first header cell when present. Spreadsheet
// tools on the receiving end of our own reports re-export with it, so the
// resubmission path sees it constantly.
const utf8BOM = "\uFEFF"
