package sources

const secSubmissionsFixture = `{
  "cik": "1318605",
  "name": "Tesla, Inc.",
  "filings": {
    "recent": {
      "accessionNumber": ["0000950170-23-038779", "0001318605-24-000001", "", "0001104659-24-000002"],
      "filingDate": ["2023-08-04", "2024-01-29", "2024-02-01", "2024-03-01"],
      "form": ["8-K", "10-K", "4", "DEF 14A"],
      "primaryDocument": ["tsla-20230804.htm", "tsla-20231231.htm", "x.htm", ""]
    }
  }
}`

const recallsPageFixture = `[
  {
    "nhtsa_id": "24V051",
    "report_received_date": "2024-01-24T00:00:00.000",
    "manufacturer": "Tesla, Inc.",
    "subject": "Warning Lights Too Small",
    "component": "ELECTRICAL SYSTEM",
    "defect_summary": "  Font size of warning indicators is too small.  ",
    "consequence_summary": "Reduced visibility increases crash risk.",
    "corrective_action": "Over-the-air software update.",
    "recall_type": "Vehicle",
    "potentially_affected": 2193869,
    "mfr_campaign_number": "SB-24-00-001",
    "recall_link": {"url": "https://www.nhtsa.gov/recalls?nhtsaId=24V051"}
  },
  {
    "mfr_campaign_number": "SB 23 00 009",
    "report_received_date": "2023-12-12",
    "subject": "Autosteer Controls"
  },
  {
    "nhtsa_id": "00V000",
    "subject": "no date, skipped"
  }
]`
